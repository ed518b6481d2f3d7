package processor

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// The editor escapes custom tags typed as text; accordion lists are restored
// to real elements so site themes can style them.
var accordionPattern = regexp.MustCompile(`(?s)<p>&lt;accordion-list&gt;</p>(.*?)<p>&lt;/accordion-list&gt;</p>`)

func rewriteAccordions(body string) string {
	return accordionPattern.ReplaceAllString(body, "<accordion-list>$1</accordion-list>")
}

func markdownFromHTML(body string) (string, error) {
	md, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md) + "\n", nil
}
