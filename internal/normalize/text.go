package normalize

import (
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanText strips markup and entities from upstream synopses and collapses whitespace.
func CleanText(raw string) string {
	value := html.UnescapeString(strings.TrimSpace(raw))
	value = tagPattern.ReplaceAllString(value, " ")
	return strings.Join(strings.Fields(value), " ")
}
