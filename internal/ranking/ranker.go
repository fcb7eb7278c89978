package ranking

import (
	"sort"
	"strings"
)

// Ranker combines scorers and multipliers to re-rank candidates.
type Ranker struct {
	config        *Config
	sourceScorer  *SourceScorer
	contentScorer *ContentScorer
	multipliers   []Multiplier
}

// NewRanker creates a new Ranker with the given configuration. A nil config uses the defaults.
func NewRanker(config *Config) *Ranker {
	if config == nil {
		config = DefaultConfig()
	}
	config.ApplyDefaults()
	return &Ranker{
		config:        config,
		sourceScorer:  NewSourceScorer(config),
		contentScorer: NewContentScorer(config),
		multipliers:   DefaultMultipliers(config),
	}
}

// WithMultipliers sets custom multipliers.
func (r *Ranker) WithMultipliers(multipliers []Multiplier) *Ranker {
	r.multipliers = multipliers
	return r
}

// Score calculates the ranking score of c for q:
// (Ws * source + Wc * content), then every multiplier in order.
func (r *Ranker) Score(q *AnalyzedQuery, c *Candidate) float64 {
	ctx := NewScoringContext(q, c)
	score := r.config.SourceWeight*r.sourceScorer.Score(ctx) +
		r.config.ContentWeight*r.contentScorer.Score(ctx)
	for _, m := range r.multipliers {
		score = m.Multiply(ctx, score)
	}
	return score
}

// Ranked is a candidate with its ranking and final scores.
type Ranked struct {
	Candidate *Candidate
	RankScore float64
	// Score blends the normalized base score and the normalized ranking score by BaseWeight.
	Score float64
}

// Rerank scores candidates against query and returns them best first. Candidates containing a
// negated term are dropped. Ties keep the input order.
func (r *Ranker) Rerank(query string, candidates []*Candidate) []*Ranked {
	q := Analyze(query)
	results := make([]*Ranked, 0, len(candidates))
	var maxBase, maxRank float64
	for _, c := range candidates {
		if containsNegated(q, c) {
			continue
		}
		rs := r.Score(q, c)
		results = append(results, &Ranked{Candidate: c, RankScore: rs})
		maxBase = max(maxBase, c.BaseScore)
		maxRank = max(maxRank, rs)
	}

	for _, res := range results {
		var base, rank float64
		if maxBase > 0 {
			base = res.Candidate.BaseScore / maxBase
		}
		if maxRank > 0 {
			rank = res.RankScore / maxRank
		}
		res.Score = r.config.BaseWeight*base + (1-r.config.BaseWeight)*rank
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func containsNegated(q *AnalyzedQuery, c *Candidate) bool {
	if len(q.NegatedTerms) == 0 {
		return false
	}
	text := strings.ToLower(c.Text)
	for _, t := range q.NegatedTerms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// GetConfig returns the ranking configuration.
func (r *Ranker) GetConfig() *Config {
	return r.config
}
