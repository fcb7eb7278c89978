package ranking

import (
	"math"
	"strings"
)

// ContentScorer scores chunk text by phrase matches, term coverage and how early the first match
// appears.
type ContentScorer struct {
	config *Config
}

// NewContentScorer creates a new ContentScorer with the given config.
func NewContentScorer(config *Config) *ContentScorer {
	return &ContentScorer{config: config}
}

// Name returns the scorer name.
func (s *ContentScorer) Name() string {
	return "content"
}

// Score calculates the content match score.
func (s *ContentScorer) Score(ctx *ScoringContext) float64 {
	if ctx.Candidate == nil || ctx.Query == nil || ctx.Candidate.Text == "" {
		return 0
	}
	content := strings.ToLower(ctx.Candidate.Text)

	score := 0.0
	for _, phrase := range ctx.Query.Phrases {
		score = max(score, s.scorePhraseMatch(phrase, content))
	}
	score = max(score, s.scoreTermMatches(ctx.Tokens, content))

	if score > 0 {
		score *= s.positionMultiplier(ctx.Tokens, ctx.Query.Phrases, content)
	}
	return score
}

// scorePhraseMatch scores exact phrase matches with a capped bonus for repeats.
func (s *ContentScorer) scorePhraseMatch(phrase, content string) float64 {
	count := strings.Count(content, phrase)
	if count == 0 {
		return 0
	}
	return s.config.PhraseMatchScore + math.Min(float64(count-1)*5, 20)
}

func (s *ContentScorer) scoreTermMatches(terms []string, content string) float64 {
	matchCount := CountMatchingTerms(terms, content)
	if matchCount == 0 {
		return 0
	}
	if matchCount == len(terms) {
		if TermsInOrder(terms, content) {
			return s.config.AllWordsContentScore
		}
		return s.config.ScatteredWordsScore
	}
	return s.config.ScatteredWordsScore * float64(matchCount) / float64(len(terms))
}

// positionMultiplier boosts chunks whose first match falls in the leading part of the text.
func (s *ContentScorer) positionMultiplier(terms, phrases []string, content string) float64 {
	threshold := max(int(float64(len(content))*s.config.PositionBoostThreshold), 100)
	early := content
	if len(early) > threshold {
		early = early[:threshold]
	}
	for _, p := range phrases {
		if strings.Contains(early, p) {
			return s.config.PositionBoostMultiplier
		}
	}
	for _, t := range terms {
		if strings.Contains(early, t) {
			return s.config.PositionBoostMultiplier
		}
	}
	return 1.0
}
