package validation

import (
	"regexp"
	"strings"
)

var (
	htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	cdataRe       = regexp.MustCompile(`(?s)<!\[CDATA\[.*?\]\]>`)
)

// Sanitize is the second, non-rejecting phase: values that passed the
// injection heuristics still get null bytes, HTML comments, CDATA
// sections and stray control characters stripped.
func Sanitize(value string) string {
	value = strings.ReplaceAll(value, "\x00", "")
	value = htmlCommentRe.ReplaceAllString(value, "")
	value = cdataRe.ReplaceAllString(value, "")
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
}
