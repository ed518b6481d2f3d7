// Package metadata merges author frontmatter across formats and produces the
// metadata.json persisted next to every mirrored document.
package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Well-known keys.
const (
	KeyTitle     = "title"
	KeyOrder     = "order"
	KeyPath      = "path"
	KeyImage     = "image"
	KeyDraft     = "draft"
	KeyBrouillon = "brouillon"
	KeyLogoFile  = "logo_file"
	KeyEditURL   = "edit_url"
)

// transientKeys never reach metadata.json.
var transientKeys = []string{KeyPath, KeyLogoFile, KeyEditURL}

var truthy = map[string]bool{"true": true, "yes": true, "oui": true}

// Metadata maps lowercase keys to scalar values.
type Metadata map[string]any

// Merge folds the layers in order; a later layer wins for keys it shares with
// an earlier one. Callers pass HTML before Markdown, so Markdown wins.
func Merge(layers ...map[string]string) Metadata {
	out := Metadata{}
	for _, layer := range layers {
		for k, v := range layer {
			out[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return out
}

// String returns the value of key rendered as a trimmed string.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// First returns the first non-empty value among keys.
func (m Metadata) First(keys ...string) string {
	for _, k := range keys {
		if v := m.String(k); v != "" {
			return v
		}
	}
	return ""
}

// IsDraft reports whether `draft` or `brouillon` holds a truthy token.
func (m Metadata) IsDraft() bool {
	for _, k := range []string{KeyDraft, KeyBrouillon} {
		if truthy[strings.ToLower(m.String(k))] {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Finalize returns the persisted form: transient keys stripped, title and
// order injected.
func (m Metadata) Finalize(title string, order int) Metadata {
	out := m.Clone()
	for _, k := range transientKeys {
		delete(out, k)
	}
	out[KeyTitle] = title
	out[KeyOrder] = order
	return out
}

// Marshal renders m as indented JSON with non-ASCII characters preserved.
func (m Metadata) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any(m)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a metadata.json payload. Whole numbers come back as int.
func Unmarshal(data []byte) (Metadata, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(Metadata, len(raw))
	for k, v := range raw {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				out[k] = int(i)
				continue
			}
			f, _ := n.Float64()
			out[k] = f
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Order returns the injected order, or -1 when absent.
func (m Metadata) Order() int {
	switch v := m[KeyOrder].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return -1
	}
}
