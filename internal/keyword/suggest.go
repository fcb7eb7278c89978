package keyword

import (
	"sort"
	"strings"
)

// Suggestion is a dictionary term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// Suggester proposes corrections for query terms missing from a term dictionary.
type Suggester struct {
	terms          map[string]int
	maxDistance    int
	minFreq        int
	maxSuggestions int
}

// SuggesterOption is a functional option for configuring a Suggester.
type SuggesterOption func(*Suggester)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SuggesterOption {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores dictionary terms found in fewer than f chunks.
func WithMinFrequency(f int) SuggesterOption {
	return func(s *Suggester) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// NewSuggester builds a Suggester over terms, a map of term to document frequency such as
// BleveIndex.TermCounts returns.
func NewSuggester(terms map[string]int, opts ...SuggesterOption) *Suggester {
	s := &Suggester{
		terms:          terms,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns dictionary terms within the edit distance of term, best first.
func (s *Suggester) Suggest(term string) []Suggestion {
	term = strings.ToLower(term)
	n := len([]rune(term))
	var out []Suggestion
	for dictTerm, freq := range s.terms {
		if dictTerm == term || freq < s.minFreq {
			continue
		}
		if diff := len([]rune(dictTerm)) - n; diff > s.maxDistance || -diff > s.maxDistance {
			continue
		}
		d := LevenshteinDistance(term, dictTerm)
		if d > s.maxDistance {
			continue
		}
		out = append(out, Suggestion{
			Term:      dictTerm,
			Distance:  d,
			Frequency: freq,
			Score:     float64(freq) / float64(d+1),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}

// Correct replaces unknown terms in query with their best suggestion. The boolean is false
// when nothing was replaced.
func (s *Suggester) Correct(query string) (string, bool) {
	terms := tokenizeQuery(query)
	changed := false
	for i, term := range terms {
		if _, ok := s.terms[term]; ok {
			continue
		}
		if sugg := s.Suggest(term); len(sugg) > 0 {
			terms[i] = sugg[0].Term
			changed = true
		}
	}
	if !changed {
		return query, false
	}
	return strings.Join(terms, " "), true
}

// LevenshteinDistance returns the number of single-rune insertions, deletions or substitutions
// needed to turn a into b.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
