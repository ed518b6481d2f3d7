package frontmatter

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/docs2static/internal/config"
)

// Extractor pulls the author-facing key/value block out of a document body.
// Keys are trimmed and lowercased, values trimmed. When no block is present
// the map is empty and the body is returned unchanged.
type Extractor interface {
	Extract(body string) (fields map[string]string, rest string)
}

// ForFormat returns the extractor for a single content format.
func ForFormat(format config.ContentFormat) Extractor {
	if format == config.FormatMarkdown {
		return MarkdownExtractor{}
	}
	return HTMLExtractor{}
}

var (
	leadingEmptyParagraphs = regexp.MustCompile(`^(?:<p></p>)+`)
	htmlBlock              = regexp.MustCompile(`(?is)^<p>---\s*</p>(.*?)<p>---\s*</p>`)
	htmlParagraph          = regexp.MustCompile(`(?is)<p>(.*?)</p>`)

	markdownBlock = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---`)
)

// HTMLExtractor reads a block delimited by two `<p>---</p>` paragraphs, one
// `<p>key: value</p>` paragraph per entry. Leading empty paragraphs are skipped.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(body string) (map[string]string, string) {
	fields := map[string]string{}
	trimmed := leadingEmptyParagraphs.ReplaceAllString(body, "")
	loc := htmlBlock.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return fields, body
	}
	for _, p := range htmlParagraph.FindAllStringSubmatch(trimmed[loc[2]:loc[3]], -1) {
		addEntry(fields, p[1])
	}
	return fields, strings.TrimLeft(trimmed[loc[1]:], " \t\r\n")
}

// MarkdownExtractor reads a `---` fenced block at the very start of the body,
// one `key: value` line per entry. Blank lines are ignored.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(body string) (map[string]string, string) {
	fields := map[string]string{}
	loc := markdownBlock.FindStringSubmatchIndex(body)
	if loc == nil {
		return fields, body
	}
	for _, line := range strings.Split(body[loc[2]:loc[3]], "\n") {
		addEntry(fields, line)
	}
	return fields, strings.TrimLeft(body[loc[1]:], " \t\r\n")
}

// addEntry splits on the first colon only, so values may contain colons.
func addEntry(fields map[string]string, entry string) {
	key, value, ok := strings.Cut(entry, ":")
	if !ok {
		return
	}
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	fields[key] = value
}
