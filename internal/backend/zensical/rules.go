package zensical

import (
	"regexp"
	"strings"
)

// Settings are the values written into zensical.toml.
type Settings struct {
	SiteName    string
	Description string
	Author      string
	Copyright   string
	DocsDir     string
	RepoURL     string
	Logo        string
}

// Rule is one independent, idempotent edit of zensical.toml. Rules work on
// the raw text so comments and layout of the generated file survive.
type Rule struct {
	Name  string
	Apply func(content string, s Settings) string
}

const (
	projectHeader = "[project]"
	themeHeader   = "[project.theme]"
)

// Rules are applied in order by Patch.
var Rules = []Rule{
	{Name: "site_name", Apply: func(c string, s Settings) string { return setString(c, "site_name", s.SiteName) }},
	{Name: "site_description", Apply: func(c string, s Settings) string { return setString(c, "site_description", s.Description) }},
	{Name: "site_author", Apply: func(c string, s Settings) string { return setString(c, "site_author", s.Author) }},
	{Name: "repo_url", Apply: func(c string, s Settings) string { return setString(c, "repo_url", s.RepoURL) }},
	{Name: "copyright", Apply: setCopyright},
	{Name: "docs_dir", Apply: func(c string, s Settings) string { return setString(c, "docs_dir", s.DocsDir) }},
	{Name: "logo", Apply: setLogo},
	{Name: "navigation.tabs", Apply: enableTabs},
	{Name: "navigation.sections", Apply: disableSections},
}

// Patch applies every rule.
func Patch(content string, s Settings) string {
	for _, r := range Rules {
		content = r.Apply(content, s)
	}
	return content
}

// quote renders v as a TOML basic string.
func quote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "", "\t", `\t`)
	return `"` + r.Replace(v) + `"`
}

func keyPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^([ \t]*)` + regexp.QuoteMeta(key) + `[ \t]*=[ \t]*"(?:[^"\\\n]|\\.)*"`)
}

// setString replaces the active assignment of key, or inserts one right
// after the [project] header. Empty values leave the file alone.
func setString(content, key, value string) string {
	if value == "" {
		return content
	}
	line := key + " = " + quote(value)
	re := keyPattern(key)
	if loc := re.FindStringSubmatchIndex(content); loc != nil {
		indent := content[loc[2]:loc[3]]
		return content[:loc[0]] + indent + line + content[loc[1]:]
	}
	return insertAfter(content, projectHeader, line)
}

// insertAfter adds line below the first occurrence of header. Without the
// header the content is returned unchanged.
func insertAfter(content, header, line string) string {
	idx := headerIndex(content, header)
	if idx < 0 {
		return content
	}
	end := idx + len(header)
	return content[:end] + "\n" + line + content[end:]
}

func headerIndex(content, header string) int {
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(header) + `[ \t]*$`)
	loc := re.FindStringIndex(content)
	if loc == nil {
		return -1
	}
	return loc[0]
}

var copyrightBlock = regexp.MustCompile(`(?s)copyright[ \t]*=[ \t]*""".*?"""`)

func setCopyright(content string, s Settings) string {
	if s.Copyright == "" {
		return content
	}
	text := strings.NewReplacer(`\`, `\\`, `"""`, `\"\"\"`).Replace(s.Copyright)
	block := "copyright = \"\"\"\n" + text + "\n\"\"\""
	if copyrightBlock.MatchString(content) {
		return copyrightBlock.ReplaceAllLiteralString(content, block)
	}
	if keyPattern("copyright").MatchString(content) {
		return keyPattern("copyright").ReplaceAllLiteralString(content, block)
	}
	return insertAfter(content, projectHeader, block)
}

var logoLine = regexp.MustCompile(`\n[ \t]*#?[ \t]*logo[ \t]*=[ \t]*"[^"\n]*"`)

// setLogo drops every logo line, commented or not, then declares the logo
// under [project.theme].
func setLogo(content string, s Settings) string {
	if s.Logo == "" || headerIndex(content, themeHeader) < 0 {
		return content
	}
	content = logoLine.ReplaceAllLiteralString(content, "")
	return insertAfter(content, themeHeader, "logo = "+quote(s.Logo))
}

var (
	commentedTabs = regexp.MustCompile(`#[ \t]*"navigation\.tabs"`)
	featuresList  = regexp.MustCompile(`(?m)^([ \t]*)features[ \t]*=[ \t]*\[`)
	// activeSections matches an uncommented entry: no # earlier on the line.
	activeSections = regexp.MustCompile(`^[^#]*"navigation\.sections"`)
	inlineSections = regexp.MustCompile(`"navigation\.sections"[ \t]*,?[ \t]*`)
)

func enableTabs(content string, _ Settings) string {
	if headerIndex(content, themeHeader) < 0 {
		return content
	}
	content = commentedTabs.ReplaceAllLiteralString(content, `"navigation.tabs"`)
	if strings.Contains(content, `"navigation.tabs"`) {
		return content
	}
	if loc := featuresList.FindStringSubmatchIndex(content); loc != nil {
		indent := content[loc[2]:loc[3]]
		return content[:loc[0]] + indent + `features = ["navigation.tabs", ` + strings.TrimLeft(content[loc[1]:], " \t")
	}
	return insertAfter(content, themeHeader, `features = ["navigation.tabs"]`)
}

// disableSections comments out a navigation.sections entry standing on its
// own line and drops it from inline arrays, where a comment would swallow
// the rest of the line.
func disableSections(content string, _ Settings) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		switch {
		case !activeSections.MatchString(line):
		case strings.HasPrefix(trimmed, `"navigation.sections"`):
			lines[i] = line[:len(line)-len(trimmed)] + "#" + trimmed
		default:
			lines[i] = inlineSections.ReplaceAllLiteralString(line, "")
		}
	}
	return strings.Join(lines, "\n")
}
