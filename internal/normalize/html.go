package normalize

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML flattens markup to plain text: tags removed, entities decoded,
// runs of whitespace collapsed to single spaces.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}
