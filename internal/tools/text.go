package tools

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// plainText strips all markup, unescapes entities and collapses whitespace.
func plainText(markup string) string {
	return strings.Join(strings.Fields(html.UnescapeString(stripPolicy.Sanitize(markup))), " ")
}

// truncate cuts s to at most n runes, appending "..." when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
