// Package slug derives filesystem-safe directory names from document titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Untitled is the slug used when a title yields no usable characters.
const Untitled = "sans-titre"

var (
	disallowed = regexp.MustCompile(`[^A-Za-z0-9_\s-]`)
	separators = regexp.MustCompile(`[-\s]+`)
)

// asciiFold decomposes accented characters and drops everything outside ASCII.
var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Make turns a title into a lowercase, hyphenated slug:
// "C'est l'été !" becomes "cest-lete".
func Make(title string) string {
	if title == "" {
		return Untitled
	}
	folded, _, err := transform.String(asciiFold, title)
	if err != nil {
		folded = title
	}
	folded = disallowed.ReplaceAllString(folded, "")
	folded = strings.ToLower(strings.TrimSpace(folded))
	folded = separators.ReplaceAllString(folded, "-")
	if folded == "" {
		return Untitled
	}
	return folded
}
