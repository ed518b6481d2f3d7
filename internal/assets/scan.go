package assets

import (
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	xhtml "golang.org/x/net/html"
)

// Reference is one occurrence of an asset URL in a body.
type Reference struct {
	URL   string
	Start int // byte offset of the URL in the body
	End   int
}

var (
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\(\s*<?([^)\s>]+)>?`)
	htmlImageSrc  = regexp.MustCompile(`(?is)<img\b[^>]*?\bsrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// markdownImages returns image destinations goldmark recognises, so images
// quoted inside code spans or fences are left alone.
func markdownImages(body string) map[string]bool {
	src := []byte(body)
	root := goldmark.New().Parser().Parse(text.NewReader(src))
	found := map[string]bool{}
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if img, ok := n.(*gmast.Image); ok {
			found[string(img.Destination)] = true
		}
		return gmast.WalkContinue, nil
	})
	return found
}

// ScanMarkdown finds `![alt](url)` references.
func ScanMarkdown(body string) []Reference {
	images := markdownImages(body)
	var refs []Reference
	for _, m := range markdownImage.FindAllStringSubmatchIndex(body, -1) {
		u := body[m[2]:m[3]]
		if !images[u] {
			continue
		}
		refs = append(refs, Reference{URL: u, Start: m[2], End: m[3]})
	}
	return refs
}

// htmlImages returns the decoded src attribute of every <img> element.
func htmlImages(body string) map[string]bool {
	found := map[string]bool{}
	doc, err := xhtml.Parse(strings.NewReader(body))
	if err != nil {
		return found
	}
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && n.Data == "img" {
			for _, a := range n.Attr {
				if a.Key == "src" {
					found[a.Val] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// ScanHTML finds `<img src="url">` references. URL holds the decoded
// attribute value while the offsets cover its raw, possibly escaped, text.
func ScanHTML(body string) []Reference {
	images := htmlImages(body)
	var refs []Reference
	for _, m := range htmlImageSrc.FindAllStringSubmatchIndex(body, -1) {
		start, end := m[2], m[3]
		if start < 0 {
			start, end = m[4], m[5]
		}
		u := html.UnescapeString(body[start:end])
		if !images[u] {
			continue
		}
		refs = append(refs, Reference{URL: u, Start: start, End: end})
	}
	return refs
}

// LeadingImage returns the src of an <img> that opens the body, the
// convention for a document cover image.
func LeadingImage(body string) string {
	m := htmlImageSrc.FindStringSubmatchIndex(body)
	if m == nil || m[0] != 0 {
		return ""
	}
	if m[2] >= 0 {
		return html.UnescapeString(body[m[2]:m[3]])
	}
	return html.UnescapeString(body[m[4]:m[5]])
}
