// Package config provides configuration loading and structs for the Contexter server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Watch      WatchConfig      `yaml:"watch"`
	// Extensions lists the document extensions accepted for upload and ingestion.
	Extensions []string `yaml:"extensions"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// MaxUploadMB bounds multipart upload size.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// StorageConfig holds the document and knowledge base directories.
type StorageConfig struct {
	SourcesDir string `yaml:"sources_dir"`
	IndexDir   string `yaml:"index_dir"`
}

// EmbeddingConfig selects and tunes the embedding capability.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // onnx, openai, mock
	ModelPath      string `yaml:"model_path"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	MaxTokens      int    `yaml:"max_tokens"`
	CacheSize      int    `yaml:"cache_size"`
	BatchSize      int    `yaml:"batch_size"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the embedding call timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// ChunkingConfig holds chunk window settings.
type ChunkingConfig struct {
	Size           int  `yaml:"size"`
	// Overlap is a pointer so that an explicit 0 is kept by ApplyDefaults.
	Overlap        *int `yaml:"overlap,omitempty"`
	BoundaryWindow int  `yaml:"boundary_window"`
}

// OverlapChars returns the configured overlap, or the default when unset.
func (c *ChunkingConfig) OverlapChars() int {
	if c.Overlap == nil {
		return DefaultChunkOverlap
	}
	return *c.Overlap
}

// RetrievalConfig holds query-time search settings.
type RetrievalConfig struct {
	TopK    int    `yaml:"top_k"`
	Backend string `yaml:"backend"` // flat, faiss
}

// GenerationConfig selects the generative capability. Provider "none", or "openai" without an
// API key in the environment, uses the built-in extractive fallback.
type GenerationConfig struct {
	Provider         string  `yaml:"provider"` // none, openai
	Model            string  `yaml:"model"`
	APIKeyEnv        string  `yaml:"api_key_env"`
	BaseURL          string  `yaml:"base_url"`
	MaxTokens        int      `yaml:"max_tokens"`
	Temperature      *float32 `yaml:"temperature,omitempty"`
	MaxContextTokens int      `yaml:"max_context_tokens"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
}

// SamplingTemperature returns the configured temperature, or the default when unset. 0 is a
// valid setting.
func (g *GenerationConfig) SamplingTemperature() float32 {
	if g.Temperature == nil {
		return DefaultTemperature
	}
	return *g.Temperature
}

// Timeout returns the generation call timeout.
func (g *GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// APIKey reads the API key from the configured environment variable.
func (g *GenerationConfig) APIKey() string {
	return os.Getenv(g.APIKeyEnv)
}

// WatchConfig holds sources directory watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Debounce returns the debounce interval between a file event and re-ingestion.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	cfg.ExpandPaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandPaths makes the storage and model paths absolute. See expandPath for the rules.
func (c *Config) ExpandPaths(configDir string) {
	c.Storage.SourcesDir = expandPath(c.Storage.SourcesDir, configDir)
	c.Storage.IndexDir = expandPath(c.Storage.IndexDir, configDir)
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if overlap := c.Chunking.OverlapChars(); overlap < 0 || overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be in [0, chunking.size (%d))", overlap, c.Chunking.Size)
	}
	switch c.Embedding.Provider {
	case "onnx", "openai", "mock":
	default:
		return fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, mock)", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case "none", "openai":
	default:
		return fmt.Errorf("unknown generation provider: %s (supported: none, openai)", c.Generation.Provider)
	}
	switch c.Retrieval.Backend {
	case "flat", "faiss":
	default:
		return fmt.Errorf("unknown retrieval backend: %s (supported: flat, faiss)", c.Retrieval.Backend)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir,
// "~/" is the home directory, other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
