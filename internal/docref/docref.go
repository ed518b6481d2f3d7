// Package docref resolves user supplied document references into an API root
// and a document identifier.
package docref

import (
	"net/url"
	"regexp"
	"strings"

	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
)

// APIPrefix is the versioned path every Docs API call is relative to.
const APIPrefix = "/api/v1.0"

var (
	docsPathPattern = regexp.MustCompile(`/docs/([^/]+)`)
	bareIDPattern   = regexp.MustCompile(`^[a-f0-9-]{36}$`)
)

// Reference identifies one document on one Docs instance.
type Reference struct {
	Base string // scheme://host of the instance
	ID   string
}

// Resolver parses references; bare identifiers bind to DefaultBase.
type Resolver struct {
	DefaultBase string
}

// NewResolver creates a resolver binding bare ids to defaultBase.
func NewResolver(defaultBase string) Resolver {
	return Resolver{DefaultBase: strings.TrimRight(defaultBase, "/")}
}

// Parse accepts either a URL whose path contains /docs/<id> or a bare
// 36 character identifier.
func (r Resolver) Parse(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		if m := docsPathPattern.FindStringSubmatch(u.Path); m != nil {
			return Reference{Base: u.Scheme + "://" + u.Host, ID: m[1]}, nil
		}
	}
	if bareIDPattern.MatchString(raw) {
		return Reference{Base: r.DefaultBase, ID: raw}, nil
	}
	return Reference{}, derrors.UnrecognizedReference(raw).Build()
}

// APIURL returns the absolute API URL for path (which must start with "/").
func APIURL(base, path string) string {
	return strings.TrimRight(base, "/") + APIPrefix + path
}

// ContentURL is the human facing URL of the document.
func (r Reference) ContentURL() string {
	return strings.TrimRight(r.Base, "/") + "/docs/" + r.ID + "/"
}

func (r Reference) String() string {
	return r.Base + "#" + r.ID
}
