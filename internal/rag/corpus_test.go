package rag

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/contexter/internal/answer"
	"github.com/hyperjump/contexter/internal/config"
	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/models"
)

// corpusTopics each carry a signature phrase that only their own document contains.
var corpusTopics = []struct {
	title, phrase, content string
}{
	{"Kubernetes Docs", "container orchestration", "Kubernetes is an open-source container orchestration platform that automates deployment and scaling."},
	{"PostgreSQL Manual", "relational database", "PostgreSQL is an advanced relational database with JSON and full-text support."},
	{"Machine Learning", "learn patterns", "Machine learning algorithms learn patterns from labelled examples."},
	{"REST API Design", "status codes", "REST endpoints use HTTP methods and status codes to describe outcomes."},
	{"Redis Cache", "in-memory cache", "Redis is an in-memory cache used for sessions and rate counters."},
	{"Terraform IaC", "infrastructure as code", "Terraform manages cloud resources as infrastructure as code in declarative files."},
	{"Prometheus Metrics", "time-series based", "Prometheus scrapes monitoring metrics that are time-series based."},
	{"OAuth", "delegated access", "OAuth is an authorization framework that enables secure delegated access."},
	{"Git Workflow", "version control", "Git is a distributed version control system for source code."},
	{"Kafka Streams", "event stream", "Apache Kafka is a distributed event stream platform for high throughput."},
	{"Chunking Strategy", "overlap preserves", "Chunking splits long documents, and overlap preserves context across boundaries."},
	{"Circuit Breaker", "cascading failures", "A circuit breaker stops cascading failures by failing fast."},
}

var corpusExtensions = []string{".txt", ".md", ".rst", ".docx", ".xlsx", ".csv"}

func corpusFile(t *testing.T, ext, text string) []byte {
	t.Helper()
	switch ext {
	case ".docx":
		var buf bytes.Buffer
		w := zip.NewWriter(&buf)
		fw, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
			text + `</w:t></w:r></w:p></w:body></w:document>`))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return buf.Bytes()
	case ".xlsx":
		f := excelize.NewFile()
		defer f.Close()
		require.NoError(t, f.SetCellValue("Sheet1", "A1", text))
		var buf bytes.Buffer
		_, err := f.WriteTo(&buf)
		require.NoError(t, err)
		return buf.Bytes()
	default:
		return []byte(text)
	}
}

// TestCorpus_IngestAndSearch ingests a mixed-format corpus and checks each signature phrase
// finds its own document.
func TestCorpus_IngestAndSearch(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.SourcesDir = filepath.Join(dir, "uploads")
	cfg.Storage.IndexDir = filepath.Join(dir, "index")
	cfg.Extensions = corpusExtensions
	cfg.Embedding.Provider = "mock"
	s := NewService(cfg, embedding.NewMockEmbedder(64), answer.FallbackGenerator{}, nil)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(cfg.Storage.SourcesDir, 0o755))
	want := make(map[string]string, len(corpusTopics))
	for i, topic := range corpusTopics {
		name := fmt.Sprintf("doc%02d%s", i, corpusExtensions[i%len(corpusExtensions)])
		content := topic.title + ". " + topic.content
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.SourcesDir, name), corpusFile(t, filepath.Ext(name), content), 0o644))
		want[topic.phrase] = name
	}

	stats, err := s.IngestDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(corpusTopics), stats.FilesIngested)
	assert.Zero(t, stats.FilesSkipped)

	for phrase, source := range want {
		t.Run(phrase, func(t *testing.T) {
			for _, mode := range []string{models.ModeKeyword, models.ModeHybrid} {
				resp, err := s.Search(ctx, &models.KeywordQuery{Query: `"` + phrase + `"`, Mode: mode, Limit: 5, Rerank: true})
				require.NoError(t, err)
				require.NotEmpty(t, resp.Results, "mode %s", mode)
				assert.Equal(t, source, resp.Results[0].Metadata.Source, "mode %s", mode)
			}
		})
	}

	kb, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(corpusTopics), kb.TotalDocuments)
}
