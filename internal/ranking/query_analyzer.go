package ranking

import (
	"regexp"
	"strings"
	"unicode"
)

var phraseRegex = regexp.MustCompile(`"([^"]+)"`)

// Analyze parses a query string into terms, quoted phrases and negated terms. Boolean operator
// words are dropped.
func Analyze(query string) *AnalyzedQuery {
	result := &AnalyzedQuery{
		Original:     query,
		Terms:        []string{},
		Phrases:      []string{},
		NegatedTerms: []string{},
	}

	for _, match := range phraseRegex.FindAllStringSubmatch(query, -1) {
		if phrase := strings.TrimSpace(match[1]); phrase != "" {
			result.Phrases = append(result.Phrases, strings.ToLower(phrase))
		}
	}
	remaining := phraseRegex.ReplaceAllString(query, " ")

	for _, word := range strings.Fields(remaining) {
		if strings.HasPrefix(word, "-") {
			if negated := normalizeToken(strings.TrimPrefix(word, "-")); negated != "" {
				result.NegatedTerms = append(result.NegatedTerms, negated)
			}
			continue
		}
		if strings.EqualFold(word, "AND") || strings.EqualFold(word, "OR") || strings.EqualFold(word, "NOT") {
			continue
		}
		if normalized := normalizeToken(word); normalized != "" {
			result.Terms = append(result.Terms, normalized)
		}
	}
	return result
}

// normalizeToken lowercases a token and trims edge punctuation, keeping internal hyphens and
// underscores.
func normalizeToken(token string) string {
	token = strings.ToLower(token)
	return strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) && r != '-' && r != '_'
	})
}

// TokenizeForMatching returns the query terms followed by the words of its phrases, deduplicated.
func TokenizeForMatching(q *AnalyzedQuery) []string {
	seen := make(map[string]bool)
	tokens := make([]string, 0, len(q.Terms)+len(q.Phrases)*3)
	add := func(t string) {
		if t != "" && !seen[t] {
			tokens = append(tokens, t)
			seen[t] = true
		}
	}
	for _, term := range q.Terms {
		add(term)
	}
	for _, phrase := range q.Phrases {
		for _, word := range strings.Fields(phrase) {
			add(normalizeToken(word))
		}
	}
	return tokens
}

// AllTermsMatch checks if all query terms are found in the given text.
func AllTermsMatch(terms []string, text string) bool {
	if len(terms) == 0 {
		return false
	}
	return CountMatchingTerms(terms, text) == len(terms)
}

// CountMatchingTerms counts how many query terms are found in the text.
func CountMatchingTerms(terms []string, text string) int {
	count := 0
	textLower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(textLower, term) {
			count++
		}
	}
	return count
}

// TermsInOrder checks if terms appear in order in the text.
func TermsInOrder(terms []string, text string) bool {
	if len(terms) == 0 {
		return false
	}
	textLower := strings.ToLower(text)
	lastPos := -1
	for _, term := range terms {
		pos := strings.Index(textLower[lastPos+1:], term)
		if pos == -1 {
			return false
		}
		lastPos = lastPos + 1 + pos
	}
	return true
}

// NormalizeFilename removes the extension, replaces separators with spaces and lowercases.
func NormalizeFilename(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		filename = filename[:idx]
	}
	filename = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(filename)
	return strings.ToLower(strings.TrimSpace(filename))
}

// bestMatchType classifies how q matches text.
func bestMatchType(q *AnalyzedQuery, tokens []string, text string) MatchType {
	lower := strings.ToLower(text)
	for _, phrase := range q.Phrases {
		if strings.Contains(lower, phrase) {
			return MatchTypePhrase
		}
	}
	switch n := CountMatchingTerms(tokens, lower); {
	case n == 0:
		return MatchTypeNone
	case n < len(tokens):
		return MatchTypePartial
	case TermsInOrder(tokens, lower):
		return MatchTypePhrase
	default:
		return MatchTypeAllWords
	}
}
