package config

import "git.home.luguber.info/inful/docs2static/internal/foundation/normalization"

// ContentFormat selects which document representations are downloaded.
type ContentFormat string

const (
	FormatHTML     ContentFormat = "html"
	FormatMarkdown ContentFormat = "markdown"
	FormatBoth     ContentFormat = "both"
)

var formats = normalization.NewEnum("output.format", map[string]ContentFormat{
	"html":     FormatHTML,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
	"both":     FormatBoth,
})

// NormalizeFormat maps user input to a ContentFormat, returning empty string for unknown values.
// Empty input selects both formats.
func NormalizeFormat(raw string) ContentFormat {
	if normalization.Clean(raw) == "" {
		return FormatBoth
	}
	f, _ := formats.Parse(raw)
	return f
}

// WantsHTML reports whether the HTML representation is part of the selection.
func (f ContentFormat) WantsHTML() bool { return f == FormatHTML || f == FormatBoth }

// WantsMarkdown reports whether the Markdown representation is part of the selection.
func (f ContentFormat) WantsMarkdown() bool { return f == FormatMarkdown || f == FormatBoth }
