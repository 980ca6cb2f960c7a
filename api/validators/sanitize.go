package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims the input, folds whitespace runs into single spaces
// and truncates to maxLen bytes without splitting a rune. Ride comments and
// names are free text typed on phones.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}
