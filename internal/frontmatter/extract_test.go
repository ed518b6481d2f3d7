package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/docs2static/internal/config"
)

func TestMarkdownExtractor(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		fields map[string]string
		body   string
	}{
		{
			name:   "no block",
			in:     "# Hello\n\ntext",
			fields: map[string]string{},
			body:   "# Hello\n\ntext",
		},
		{
			name:   "simple block",
			in:     "---\nTitle: Accueil\nimage: https://x/y.png\n---\n\n# Hello",
			fields: map[string]string{"title": "Accueil", "image": "https://x/y.png"},
			body:   "# Hello",
		},
		{
			name:   "blank lines and unicode keys",
			in:     "---\n\nAuteur·ice : Camille\n\nLicence: CC-BY\n---\nbody",
			fields: map[string]string{"auteur·ice": "Camille", "licence": "CC-BY"},
			body:   "body",
		},
		{
			name:   "value with colons",
			in:     "---\nedit_url: https://host:8443/a:b\n---\nbody",
			fields: map[string]string{"edit_url": "https://host:8443/a:b"},
			body:   "body",
		},
		{
			name:   "block not at start",
			in:     "intro\n---\na: b\n---\n",
			fields: map[string]string{},
			body:   "intro\n---\na: b\n---\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, body := MarkdownExtractor{}.Extract(tt.in)
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestHTMLExtractor(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		fields map[string]string
		body   string
	}{
		{
			name:   "no block",
			in:     "<p>Hello</p>",
			fields: map[string]string{},
			body:   "<p>Hello</p>",
		},
		{
			name:   "block after empty paragraphs",
			in:     "<p></p><p></p><p>---</p><p>Draft: oui</p><p>Path: accueil</p><p>--- </p>\n<h1>Hi</h1>",
			fields: map[string]string{"draft": "oui", "path": "accueil"},
			body:   "<h1>Hi</h1>",
		},
		{
			name:   "case insensitive delimiters and colon in value",
			in:     "<P>---</P><p>image: https://cdn/x.png</p><P>---</P><p>x</p>",
			fields: map[string]string{"image": "https://cdn/x.png"},
			body:   "<p>x</p>",
		},
		{
			name:   "paragraph without colon is ignored",
			in:     "<p>---</p><p>note</p><p>a: b</p><p>---</p>",
			fields: map[string]string{"a": "b"},
			body:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, body := HTMLExtractor{}.Extract(tt.in)
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, MarkdownExtractor{}, ForFormat(config.FormatMarkdown))
	assert.IsType(t, HTMLExtractor{}, ForFormat(config.FormatHTML))
}
