// Package ranking re-ranks search candidates by how well the query matches the chunk text and its
// source document name.
package ranking

import "time"

// MatchType represents the type of query match found.
type MatchType int

const (
	// MatchTypeNone indicates no match was found.
	MatchTypeNone MatchType = iota
	// MatchTypePartial indicates some query terms matched.
	MatchTypePartial
	// MatchTypeAllWords indicates all query words matched but not in order.
	MatchTypeAllWords
	// MatchTypePhrase indicates a quoted phrase or all words in order.
	MatchTypePhrase
)

// String returns a string representation of the match type.
func (m MatchType) String() string {
	switch m {
	case MatchTypeNone:
		return "none"
	case MatchTypePartial:
		return "partial"
	case MatchTypeAllWords:
		return "all_words"
	case MatchTypePhrase:
		return "phrase"
	default:
		return "unknown"
	}
}

// AnalyzedQuery holds the parsed form of a search query.
type AnalyzedQuery struct {
	// Original is the original query string.
	Original string
	// Terms are the individual normalized tokens from the query.
	Terms []string
	// Phrases are lowercased quoted strings.
	Phrases []string
	// NegatedTerms are terms prefixed with "-"; candidates containing them are dropped.
	NegatedTerms []string
}

// Candidate is one search hit to re-rank.
type Candidate struct {
	// ID identifies the candidate to the caller, e.g. the chunk position.
	ID        int
	Text      string
	Source    string
	ChunkID   int
	ModTime   time.Time
	BaseScore float64
}

// ScoringContext is what scorers and multipliers see for one candidate.
type ScoringContext struct {
	Query     *AnalyzedQuery
	Candidate *Candidate
	// Tokens are the query terms plus the words of its phrases.
	Tokens []string
}

// NewScoringContext builds the context for scoring c against q.
func NewScoringContext(q *AnalyzedQuery, c *Candidate) *ScoringContext {
	return &ScoringContext{Query: q, Candidate: c, Tokens: TokenizeForMatching(q)}
}

// Scorer is the interface for all scoring components.
type Scorer interface {
	Score(ctx *ScoringContext) float64
	Name() string
}

// Multiplier is the interface for score multipliers.
type Multiplier interface {
	Multiply(ctx *ScoringContext, baseScore float64) float64
	Name() string
}
