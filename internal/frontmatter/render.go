package frontmatter

import (
	"strings"
	"time"

	"github.com/inful/mdfp"
)

// LastmodField records the day the rendered content last changed.
const LastmodField = "lastmod"

// Render builds a frontmatter-carrying Markdown page: the scalar fields as a
// YAML block, then a `# title` heading, then body. The block is stamped with a
// content fingerprint; lastmod is carried over from previous when the
// fingerprint did not change and set to now otherwise.
func Render(fields map[string]any, title, body string, previous *Document, now time.Time) (Document, error) {
	page := "# " + title + "\n\n" + strings.TrimLeft(body, "\n")
	if !strings.HasSuffix(page, "\n") {
		page += "\n"
	}

	out := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		if isScalar(v) {
			out[k] = v
		}
	}
	fp, err := ComputeFingerprint(out, []byte(page))
	if err != nil {
		return Document{}, err
	}
	out[mdfp.FingerprintField] = fp
	out[LastmodField] = now.UTC().Format("2006-01-02")
	if previous != nil {
		if old, _ := previous.Fields[mdfp.FingerprintField].(string); old == fp {
			if lm, ok := previous.Fields[LastmodField].(string); ok && lm != "" {
				out[LastmodField] = lm
			}
		}
	}
	return Document{Fields: out, Body: []byte(page), HasBlock: true}, nil
}

// ComputeFingerprint hashes the fields (excluding fingerprint and lastmod)
// and body of a page.
func ComputeFingerprint(fields map[string]any, body []byte) (string, error) {
	forHash := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField || k == LastmodField {
			continue
		}
		forHash[k] = v
	}
	serialized, err := SerializeYAML(forHash)
	if err != nil {
		return "", err
	}
	return mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(serialized), "\n"), string(body)), nil
}

// Fingerprint returns the stored fingerprint of d, if any.
func (d Document) Fingerprint() string {
	fp, _ := d.Fields[mdfp.FingerprintField].(string)
	return fp
}
