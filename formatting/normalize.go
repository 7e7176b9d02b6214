package formatting

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// NormalizeLabel composes Unicode, collapses runs of whitespace and trims the ends
// so upstream labels compare equal to the configured category names.
func NormalizeLabel(raw string) string {
	text := norm.NFC.String(raw)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
