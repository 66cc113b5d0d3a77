package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims surrounding space, folds runs of whitespace into one
// space, drops other control characters and caps the result at maxLen runes.
// Addresses and comments are free text in Spanish, so truncation never splits
// a multi-byte character.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))

	count := 0
	pendingSpace := false
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if pendingSpace && count > 0 {
			if maxLen > 0 && count+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			count++
		}
		pendingSpace = false
		if maxLen > 0 && count >= maxLen {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
