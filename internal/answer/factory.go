package answer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/config"
	"github.com/hyperjump/contexter/pkg/utils"
)

// New builds the generator selected by cfg. An openai provider without an API key falls back
// to FallbackGenerator.
func New(cfg *config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	logger = utils.OrNop(logger)
	switch cfg.Provider {
	case "none", "":
		return FallbackGenerator{}, nil
	case "openai":
		key := cfg.APIKey()
		if key == "" {
			logger.Warn("no OpenAI API key configured, using fallback answers", zap.String("env", cfg.APIKeyEnv))
			return FallbackGenerator{}, nil
		}
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:           key,
			BaseURL:          cfg.BaseURL,
			Model:            cfg.Model,
			MaxTokens:        cfg.MaxTokens,
			Temperature:      cfg.SamplingTemperature(),
			MaxContextTokens: cfg.MaxContextTokens,
			Timeout:          cfg.Timeout(),
			Counter:          NewTokenCounter(cfg.Model),
			Logger:           logger,
		})
	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: none, openai)", cfg.Provider)
	}
}
