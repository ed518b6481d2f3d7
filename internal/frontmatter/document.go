// Package frontmatter reads author metadata blocks out of Docs bodies and
// renders the YAML frontmatter carried by generated index.md files.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

const delimiter = "---\n"

// Document is a Markdown file split into its YAML frontmatter and body.
type Document struct {
	Fields   map[string]any
	Body     []byte
	HasBlock bool
}

// Parse splits content into frontmatter fields and body. Content without a
// leading delimiter is all body.
func Parse(content []byte) (Document, error) {
	if !bytes.HasPrefix(content, []byte(delimiter)) {
		return Document{Fields: map[string]any{}, Body: content}, nil
	}
	rest := content[len(delimiter):]
	var raw []byte
	switch {
	case bytes.HasPrefix(rest, []byte(delimiter)):
		rest = rest[len(delimiter):]
	default:
		idx := bytes.Index(rest, []byte("\n"+delimiter))
		if idx < 0 {
			return Document{}, ErrMissingClosingDelimiter
		}
		raw = rest[:idx+1]
		rest = rest[idx+1+len(delimiter):]
	}

	fields := map[string]any{}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return Document{}, err
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}
	return Document{Fields: fields, Body: rest, HasBlock: true}, nil
}

// Bytes reassembles the document. Without a block the body is returned as-is.
func (d Document) Bytes() ([]byte, error) {
	if !d.HasBlock {
		return d.Body, nil
	}
	raw, err := SerializeYAML(d.Fields)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 2*len(delimiter)+len(raw)+len(d.Body))
	out = append(out, delimiter...)
	out = append(out, raw...)
	out = append(out, delimiter...)
	out = append(out, d.Body...)
	return out, nil
}
