package indexer

import (
	"strings"
	"unicode"
)

// Clean collapses whitespace runs to a single space, drops characters other than letters,
// digits, underscore, whitespace and the punctuation .,!?;:-() and trims the result.
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteByte(' ')
				wasSpace = true
			}
			continue
		}
		wasSpace = false
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func allowed(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' {
		return true
	}
	return strings.ContainsRune(".,!?;:-()", r)
}
