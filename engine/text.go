package engine

import (
	"html"
	"regexp"
	"strings"
)

var (
	lineBreakRe   = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/li)\s*>`)
	htmlTagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	placeholderRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// PlainText projects an HTML message body into the plain text stored on an
// interaction row: tags stripped, entities decoded, unresolved {{...}}
// placeholders removed, whitespace collapsed.
func PlainText(body string) string {
	s := lineBreakRe.ReplaceAllString(body, " ")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = placeholderRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
