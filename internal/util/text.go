package util

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// CleanText strips markup and collapses whitespace in citizen-supplied text.
func CleanText(s string) string {
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

func NormalizeNationalID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// JoinName joins the non-empty name parts with single spaces.
func JoinName(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
