package sentiment

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize trims the text and collapses internal whitespace runs to a single
// space. Korean text is passed through unchanged otherwise.
func Normalize(text string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(text), " ")
}
