package config

// Defaults for settings where 0 is a meaningful value.
const (
	DefaultChunkOverlap = 200
	DefaultTemperature  = float32(0.7)
)

// DefaultExtensions are the document types accepted when none are configured.
var DefaultExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

// ApplyDefaults sets default values for any zero values in cfg. Chunk overlap and temperature
// are only defaulted when unset (nil).
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Storage.SourcesDir == "" {
		cfg.Storage.SourcesDir = ".contexter/uploads"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = ".contexter/index"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".contexter/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 60
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == nil {
		overlap := DefaultChunkOverlap
		cfg.Chunking.Overlap = &overlap
	}
	if cfg.Chunking.BoundaryWindow == 0 {
		cfg.Chunking.BoundaryWindow = 100
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.Backend == "" {
		cfg.Retrieval.Backend = "flat"
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "openai"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-3.5-turbo"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 500
	}
	if cfg.Generation.Temperature == nil {
		temperature := DefaultTemperature
		cfg.Generation.Temperature = &temperature
	}
	if cfg.Generation.MaxContextTokens == 0 {
		cfg.Generation.MaxContextTokens = 4000
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 60
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	if cfg.Extensions == nil {
		cfg.Extensions = append([]string(nil), DefaultExtensions...)
	}
}

// Default returns a config with every default applied and paths left relative.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
