package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/contexter/internal/config"
)

// New builds the embedder selected by cfg, wrapped with an LRU cache (when CacheSize > 0) and a
// per-call timeout.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	var (
		base Embedder
		err  error
	)
	switch cfg.Provider {
	case "onnx":
		base, err = NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
	case "openai":
		model := cfg.Model
		if model == "all-MiniLM-L6-v2" {
			model = ""
		}
		base, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     os.Getenv(cfg.APIKeyEnv),
			BaseURL:    cfg.BaseURL,
			Model:      model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	case "mock":
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	var e Embedder = base
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return WithTimeout(e, cfg.Timeout()), nil
}
