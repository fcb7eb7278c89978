package ranking

// Config holds the ranking weights and scores.
type Config struct {
	// BaseWeight is the share of the final score taken from the search engine's own score;
	// the rest comes from the ranking score.
	BaseWeight    float64 `yaml:"base_weight"`    // default: 0.5
	SourceWeight  float64 `yaml:"source_weight"`  // default: 0.5
	ContentWeight float64 `yaml:"content_weight"` // default: 1.0

	// Source name scoring values
	SourceAllWordsInOrderScore  float64 `yaml:"source_all_words_in_order_score"`  // default: 90
	SourceAllWordsAnyOrderScore float64 `yaml:"source_all_words_any_order_score"` // default: 80
	SourcePartialScore          float64 `yaml:"source_partial_score"`             // default: 60

	// Content scoring values
	PhraseMatchScore     float64 `yaml:"phrase_match_score"`      // default: 120
	AllWordsContentScore float64 `yaml:"all_words_content_score"` // default: 90
	ScatteredWordsScore  float64 `yaml:"scattered_words_score"`   // default: 70

	// Position-based scoring
	PositionBoostThreshold  float64 `yaml:"position_boost_threshold"`  // default: 0.1 (first 10%)
	PositionBoostMultiplier float64 `yaml:"position_boost_multiplier"` // default: 1.3
	LeadChunkMultiplier     float64 `yaml:"lead_chunk_multiplier"`     // default: 1.1

	// Recency multiplier settings
	Recency24hMultiplier   float64 `yaml:"recency_24h_multiplier"`   // default: 1.2
	RecencyWeekMultiplier  float64 `yaml:"recency_week_multiplier"`  // default: 1.1
	RecencyMonthMultiplier float64 `yaml:"recency_month_multiplier"` // default: 1.05

	// Query quality multipliers
	PhraseMatchMultiplier  float64 `yaml:"phrase_match_multiplier"`  // default: 1.3
	AllWordsMultiplier     float64 `yaml:"all_words_multiplier"`     // default: 1.0
	PartialMatchMultiplier float64 `yaml:"partial_match_multiplier"` // default: 0.7
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseWeight:    0.5,
		SourceWeight:  0.5,
		ContentWeight: 1.0,

		SourceAllWordsInOrderScore:  90,
		SourceAllWordsAnyOrderScore: 80,
		SourcePartialScore:          60,

		PhraseMatchScore:     120,
		AllWordsContentScore: 90,
		ScatteredWordsScore:  70,

		PositionBoostThreshold:  0.1,
		PositionBoostMultiplier: 1.3,
		LeadChunkMultiplier:     1.1,

		Recency24hMultiplier:   1.2,
		RecencyWeekMultiplier:  1.1,
		RecencyMonthMultiplier: 1.05,

		PhraseMatchMultiplier:  1.3,
		AllWordsMultiplier:     1.0,
		PartialMatchMultiplier: 0.7,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&c.BaseWeight, d.BaseWeight)
	fill(&c.SourceWeight, d.SourceWeight)
	fill(&c.ContentWeight, d.ContentWeight)
	fill(&c.SourceAllWordsInOrderScore, d.SourceAllWordsInOrderScore)
	fill(&c.SourceAllWordsAnyOrderScore, d.SourceAllWordsAnyOrderScore)
	fill(&c.SourcePartialScore, d.SourcePartialScore)
	fill(&c.PhraseMatchScore, d.PhraseMatchScore)
	fill(&c.AllWordsContentScore, d.AllWordsContentScore)
	fill(&c.ScatteredWordsScore, d.ScatteredWordsScore)
	fill(&c.PositionBoostThreshold, d.PositionBoostThreshold)
	fill(&c.PositionBoostMultiplier, d.PositionBoostMultiplier)
	fill(&c.LeadChunkMultiplier, d.LeadChunkMultiplier)
	fill(&c.Recency24hMultiplier, d.Recency24hMultiplier)
	fill(&c.RecencyWeekMultiplier, d.RecencyWeekMultiplier)
	fill(&c.RecencyMonthMultiplier, d.RecencyMonthMultiplier)
	fill(&c.PhraseMatchMultiplier, d.PhraseMatchMultiplier)
	fill(&c.AllWordsMultiplier, d.AllWordsMultiplier)
	fill(&c.PartialMatchMultiplier, d.PartialMatchMultiplier)
}
