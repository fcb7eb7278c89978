package search

import (
	"strings"
	"unicode"
)

// Highlight returns at most maxLen runes of content around the first query term it contains,
// with "..." marking cut ends. Content without a match is cut from the start.
func Highlight(content, query string, maxLen int) string {
	runes := []rune(content)
	if maxLen <= 0 || len(runes) <= maxLen {
		return content
	}
	start := 0
	if pos := firstTermIndex(runes, query); pos > 0 {
		start = max(0, pos-maxLen/4)
		start = min(start, len(runes)-maxLen)
	}
	end := start + maxLen
	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}

func firstTermIndex(runes []rune, query string) int {
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	best := -1
	for _, term := range strings.Fields(query) {
		t := []rune(term)
		for i := range t {
			t[i] = unicode.ToLower(t[i])
		}
		if pos := indexRunes(lower, t); pos >= 0 && (best < 0 || pos < best) {
			best = pos
		}
	}
	return best
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
