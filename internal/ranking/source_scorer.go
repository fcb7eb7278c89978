package ranking

import "strings"

// SourceScorer scores how well the query matches the name of the candidate's source document.
type SourceScorer struct {
	config *Config
}

// NewSourceScorer creates a new SourceScorer with the given config.
func NewSourceScorer(config *Config) *SourceScorer {
	return &SourceScorer{config: config}
}

// Name returns the scorer name.
func (s *SourceScorer) Name() string {
	return "source"
}

// Score calculates the source name match score.
func (s *SourceScorer) Score(ctx *ScoringContext) float64 {
	if ctx.Candidate == nil || ctx.Query == nil || ctx.Candidate.Source == "" {
		return 0
	}
	normalized := NormalizeFilename(ctx.Candidate.Source)

	score := 0.0
	for _, phrase := range ctx.Query.Phrases {
		if strings.Contains(normalized, phrase) {
			score = s.config.SourceAllWordsInOrderScore
		}
	}

	tokens := ctx.Tokens
	matchCount := CountMatchingTerms(tokens, normalized)
	if matchCount == 0 {
		return score
	}
	if matchCount == len(tokens) {
		if TermsInOrder(tokens, normalized) {
			return max(score, s.config.SourceAllWordsInOrderScore)
		}
		return max(score, s.config.SourceAllWordsAnyOrderScore)
	}
	return max(score, s.config.SourcePartialScore*float64(matchCount)/float64(len(tokens)))
}
