package ranking

import "time"

// RecencyMultiplier boosts candidates from recently modified sources.
type RecencyMultiplier struct {
	config *Config
	now    func() time.Time
}

// NewRecencyMultiplier creates a new RecencyMultiplier.
func NewRecencyMultiplier(config *Config) *RecencyMultiplier {
	return &RecencyMultiplier{config: config, now: time.Now}
}

// Name returns the multiplier name.
func (m *RecencyMultiplier) Name() string {
	return "recency"
}

// Multiply applies the recency multiplier to the base score.
func (m *RecencyMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	if baseScore == 0 || ctx.Candidate == nil || ctx.Candidate.ModTime.IsZero() {
		return baseScore
	}
	age := m.now().Sub(ctx.Candidate.ModTime)
	switch {
	case age < 24*time.Hour:
		return baseScore * m.config.Recency24hMultiplier
	case age < 7*24*time.Hour:
		return baseScore * m.config.RecencyWeekMultiplier
	case age < 30*24*time.Hour:
		return baseScore * m.config.RecencyMonthMultiplier
	}
	return baseScore
}

// QueryQualityMultiplier scales by the best match type over source name and text.
type QueryQualityMultiplier struct {
	config *Config
}

// NewQueryQualityMultiplier creates a new QueryQualityMultiplier.
func NewQueryQualityMultiplier(config *Config) *QueryQualityMultiplier {
	return &QueryQualityMultiplier{config: config}
}

// Name returns the multiplier name.
func (m *QueryQualityMultiplier) Name() string {
	return "query_quality"
}

// Multiply applies the query quality multiplier to the base score.
func (m *QueryQualityMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	if baseScore == 0 || ctx.Candidate == nil || ctx.Query == nil {
		return baseScore
	}
	match := max(
		bestMatchType(ctx.Query, ctx.Tokens, NormalizeFilename(ctx.Candidate.Source)),
		bestMatchType(ctx.Query, ctx.Tokens, ctx.Candidate.Text),
	)
	switch match {
	case MatchTypePhrase:
		return baseScore * m.config.PhraseMatchMultiplier
	case MatchTypeAllWords:
		return baseScore * m.config.AllWordsMultiplier
	case MatchTypePartial:
		return baseScore * m.config.PartialMatchMultiplier
	}
	return baseScore
}

// LeadChunkMultiplier boosts the first chunk of a document, which usually carries its title and
// summary.
type LeadChunkMultiplier struct {
	config *Config
}

// NewLeadChunkMultiplier creates a new LeadChunkMultiplier.
func NewLeadChunkMultiplier(config *Config) *LeadChunkMultiplier {
	return &LeadChunkMultiplier{config: config}
}

// Name returns the multiplier name.
func (m *LeadChunkMultiplier) Name() string {
	return "lead_chunk"
}

// Multiply applies the lead chunk multiplier to the base score.
func (m *LeadChunkMultiplier) Multiply(ctx *ScoringContext, baseScore float64) float64 {
	if ctx.Candidate != nil && ctx.Candidate.ChunkID == 0 {
		return baseScore * m.config.LeadChunkMultiplier
	}
	return baseScore
}

// DefaultMultipliers returns the default set of multipliers.
func DefaultMultipliers(config *Config) []Multiplier {
	return []Multiplier{
		NewRecencyMultiplier(config),
		NewQueryQualityMultiplier(config),
		NewLeadChunkMultiplier(config),
	}
}
