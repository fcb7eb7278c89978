package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  sources_dir: "./uploads"
embedding:
  provider: mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.IndexDir == "" {
		t.Error("index_dir should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_explicitZeroes(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		overlap     int
		temperature float32
	}{
		{"unset uses defaults", "embedding:\n  provider: mock\n", 200, 0.7},
		{"zero kept", "embedding:\n  provider: mock\nchunking:\n  overlap: 0\ngeneration:\n  temperature: 0\n", 0, 0},
		{"explicit values", "embedding:\n  provider: mock\nchunking:\n  overlap: 50\ngeneration:\n  temperature: 0.2\n", 50, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if got := cfg.Chunking.OverlapChars(); got != tt.overlap {
				t.Errorf("overlap = %d, want %d", got, tt.overlap)
			}
			if got := cfg.Generation.SamplingTemperature(); got != tt.temperature {
				t.Errorf("temperature = %v, want %v", got, tt.temperature)
			}
		})
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
embedding:
  provider: mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  sources_dir: "./data/uploads"
  index_dir: "./data/index"
embedding:
  provider: onnx
  model_path: "./models/model.onnx"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if want := filepath.Join(dir, "data", "uploads"); cfg.Storage.SourcesDir != want {
		t.Errorf("sources_dir = %s, want %s", cfg.Storage.SourcesDir, want)
	}
	if want := filepath.Join(dir, "data", "index"); cfg.Storage.IndexDir != want {
		t.Errorf("index_dir = %s, want %s", cfg.Storage.IndexDir, want)
	}
	if want := filepath.Join(dir, "models", "model.onnx"); cfg.Embedding.ModelPath != want {
		t.Errorf("model_path = %s, want %s", cfg.Embedding.ModelPath, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"overlap too large", "chunking:\n  size: 100\n  overlap: 100\n", "chunking.overlap"},
		{"negative overlap", "embedding:\n  provider: mock\nchunking:\n  overlap: -1\n", "chunking.overlap"},
		{"unknown embedding provider", "embedding:\n  provider: magic\n", "embedding provider"},
		{"unknown generation provider", "embedding:\n  provider: mock\ngeneration:\n  provider: magic\n", "generation provider"},
		{"unknown backend", "embedding:\n  provider: mock\nretrieval:\n  backend: hnsw\n", "retrieval backend"},
		{"bad yaml", "server: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("default cors origins: got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Chunking.Size != 1000 || cfg.Chunking.OverlapChars() != 200 || cfg.Chunking.BoundaryWindow != 100 {
		t.Errorf("default chunking: got %+v", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.Backend != "flat" {
		t.Errorf("default retrieval: got %+v", cfg.Retrieval)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Generation.Model != "gpt-3.5-turbo" || cfg.Generation.MaxTokens != 500 || cfg.Generation.SamplingTemperature() != 0.7 {
		t.Errorf("default generation: got %+v", cfg.Generation)
	}
	if cfg.Generation.Provider != "openai" {
		t.Errorf("default generation provider: got %s", cfg.Generation.Provider)
	}
	if len(cfg.Extensions) != 4 || cfg.Extensions[0] != ".pdf" {
		t.Errorf("extensions: got %v", cfg.Extensions)
	}
}

func TestApplyDefaults_keepsExplicitValues(t *testing.T) {
	overlap := 50
	cfg := &Config{
		Chunking:   ChunkingConfig{Size: 500, Overlap: &overlap, BoundaryWindow: 20},
		Extensions: []string{".txt"},
	}
	ApplyDefaults(cfg)
	if cfg.Chunking.Size != 500 || cfg.Chunking.OverlapChars() != 50 || cfg.Chunking.BoundaryWindow != 20 {
		t.Errorf("explicit chunking overwritten: %+v", cfg.Chunking)
	}
	if len(cfg.Extensions) != 1 {
		t.Errorf("explicit extensions overwritten: %v", cfg.Extensions)
	}
}

func TestApplyDefaults_doesNotShareExtensions(t *testing.T) {
	a := Default()
	a.Extensions[0] = ".xyz"
	if DefaultExtensions[0] != ".pdf" {
		t.Error("DefaultExtensions mutated through a config")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if cfg.Embedding.Timeout().Seconds() != 60 {
		t.Errorf("embedding timeout: %v", cfg.Embedding.Timeout())
	}
	if cfg.Watch.Debounce().Milliseconds() != 500 {
		t.Errorf("debounce: %v", cfg.Watch.Debounce())
	}
}

func TestGenerationConfig_APIKey(t *testing.T) {
	t.Setenv("CONTEXTER_TEST_KEY", "sk-test")
	g := GenerationConfig{APIKeyEnv: "CONTEXTER_TEST_KEY"}
	if g.APIKey() != "sk-test" {
		t.Errorf("APIKey() = %q", g.APIKey())
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Embedding.Provider = "mock"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Embedding.Provider != "mock" {
		t.Errorf("loaded provider: got %s", loaded.Embedding.Provider)
	}
}

func TestExpandPaths_defaultsUnderHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := Default()
	cfg.ExpandPaths("/etc/contexter")
	if want := filepath.Join(home, ".contexter", "uploads"); cfg.Storage.SourcesDir != want {
		t.Errorf("sources dir: got %s, want %s", cfg.Storage.SourcesDir, want)
	}
	if want := filepath.Join(home, ".contexter", "index"); cfg.Storage.IndexDir != want {
		t.Errorf("index dir: got %s, want %s", cfg.Storage.IndexDir, want)
	}
}
