// Package assets downloads the remote images a document references and
// rewrites the references to files stored next to the document.
package assets

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/docs2static/internal/config"
	"git.home.luguber.info/inful/docs2static/internal/fetch"
	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
	"git.home.luguber.info/inful/docs2static/internal/metrics"
	"git.home.luguber.info/inful/docs2static/internal/storage"
)

// Localizer holds the collaborators shared by every document of a run.
type Localizer struct {
	fetcher  fetch.Fetcher
	store    storage.Store
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewLocalizer returns a Localizer writing through store.
func NewLocalizer(f fetch.Fetcher, store storage.Store, rec metrics.Recorder, logger *slog.Logger) *Localizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Localizer{fetcher: f, store: store, recorder: metrics.OrNoop(rec), logger: logger}
}

// Session localizes the assets of one document into dir. Each distinct URL
// is downloaded at most once per session, across formats and metadata.
type Session struct {
	*Localizer
	dir    string
	docID  string
	done   map[string]string // url -> local filename
	failed map[string]bool
	logo   string
}

// NewSession starts localizing for the document docID stored under dir.
func (l *Localizer) NewSession(docID, dir string) *Session {
	return &Session{Localizer: l, dir: dir, docID: docID, done: map[string]string{}, failed: map[string]bool{}}
}

// Logo returns the filename of the first asset localized in this session.
func (s *Session) Logo() string { return s.logo }

// Localize rewrites every remote image reference of body. References whose
// download fails keep their remote URL.
func (s *Session) Localize(ctx context.Context, body string, format config.ContentFormat) string {
	var refs []Reference
	if format == config.FormatMarkdown {
		refs = ScanMarkdown(body)
	} else {
		refs = ScanHTML(body)
	}

	edits := make([]Edit, 0, len(refs))
	for _, ref := range refs {
		name, ok := s.LocalizeURL(ctx, ref.URL)
		if !ok {
			continue
		}
		edits = append(edits, Edit{Start: ref.Start, End: ref.End, Replacement: name})
	}
	out, err := ApplyEdits(body, edits)
	if err != nil {
		s.logger.Warn("Failed to rewrite asset references", logfields.DocID(s.docID), logfields.Error(err))
		return body
	}
	return out
}

// LocalizeURL downloads rawURL once and returns the local filename. It
// reports false for non-remote URLs, URLs without a usable filename and
// failed downloads.
func (s *Session) LocalizeURL(ctx context.Context, rawURL string) (string, bool) {
	if name, ok := s.done[rawURL]; ok {
		return name, true
	}
	if s.failed[rawURL] {
		return "", false
	}
	name := Filename(rawURL)
	if name == "" {
		return "", false
	}

	if err := s.download(ctx, rawURL, name); err != nil {
		s.failed[rawURL] = true
		s.recorder.IncAssetResult(false)
		s.logger.Warn("Asset localization failed, keeping remote reference",
			logfields.DocID(s.docID), logfields.URL(rawURL), logfields.Error(err))
		return "", false
	}
	s.done[rawURL] = name
	if s.logo == "" {
		s.logo = name
	}
	s.recorder.IncAssetResult(true)
	s.logger.Debug("Asset localized", logfields.DocID(s.docID), logfields.URL(rawURL), logfields.Path(path.Join(s.dir, name)))
	return name, true
}

func (s *Session) download(ctx context.Context, rawURL, name string) error {
	resp, err := s.fetcher.FetchCached(ctx, rawURL)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryAsset, "download failed").
			Warning().
			WithContext("url", rawURL).
			Build()
	}
	if !resp.OK() {
		return derrors.AssetError("download failed").
			WithContext("url", rawURL).
			WithContext("status", resp.StatusCode).
			Build()
	}
	if _, err := s.store.WriteFile(ctx, path.Join(s.dir, name), resp.Body); err != nil {
		return derrors.WrapError(err, derrors.CategoryAsset, "write failed").
			Warning().
			WithContext("url", rawURL).
			Build()
	}
	return nil
}

// reserved are the page files of a document directory. Assets never take
// these names.
var reserved = map[string]bool{
	"index.html":    true,
	"index.md":      true,
	"_index.md":     true,
	"metadata.json": true,
}

// reservedPrefix is prepended to asset names colliding with a page file.
const reservedPrefix = "asset-"

// Filename derives a local filename from the last segment of an http(s)
// URL's path. It returns "" when none can be derived.
func Filename(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	p := u.Path
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == ".." || strings.ContainsAny(name, `/\`) {
		return ""
	}
	if reserved[strings.ToLower(name)] {
		return reservedPrefix + name
	}
	return name
}
