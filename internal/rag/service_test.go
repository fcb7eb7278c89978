package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/contexter/internal/answer"
	"github.com/hyperjump/contexter/internal/config"
	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/extract"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/storage"
	"github.com/hyperjump/contexter/internal/vector"
)

type stubGenerator struct {
	evidence []models.Evidence
}

func (g *stubGenerator) Answer(_ context.Context, query string, evidence []models.Evidence) string {
	g.evidence = evidence
	return "stub answer to " + query
}

// queryFailingEmbedder embeds documents but fails every single-text (query) embedding.
type queryFailingEmbedder struct {
	embedding.Embedder
}

func (queryFailingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func newTestService(t *testing.T, gen answer.Generator) *Service {
	t.Helper()
	return newTestServiceWith(t, embedding.NewMockEmbedder(64), gen)
}

func newTestServiceWith(t *testing.T, emb embedding.Embedder, gen answer.Generator) *Service {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.SourcesDir = filepath.Join(dir, "uploads")
	cfg.Storage.IndexDir = filepath.Join(dir, "index")
	cfg.Embedding.Provider = "mock"
	if gen == nil {
		gen = answer.FallbackGenerator{}
	}
	return NewService(cfg, emb, gen, nil)
}

func upload(t *testing.T, s *Service, name, content string) {
	t.Helper()
	_, err := s.SaveUpload(name, strings.NewReader(content))
	require.NoError(t, err)
}

func TestQuery_EmptyStates(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	assert.Equal(t, NoKnowledgeBaseMessage, s.Ask(ctx, "anything"))
}

func TestQuery_NoChunks(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	idx, err := vector.Build(ctx, s.cfg.Retrieval.Backend, 64, nil)
	require.NoError(t, err)
	empty := &storage.KnowledgeBase{Index: idx, Manifest: map[string]models.ManifestEntry{}}
	require.NoError(t, s.store.Save(ctx, s.cfg.Storage.IndexDir, empty))

	assert.Equal(t, NoChunksMessage, s.Ask(ctx, "anything"))
}

func TestQuery_NoEvidenceWhenQueryEmbeddingFails(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestServiceWith(t, queryFailingEmbedder{embedding.NewMockEmbedder(64)}, gen)
	ctx := context.Background()
	upload(t, s, "a.txt", "Alpha document about vectors.")
	_, err := s.IngestDefault(ctx)
	require.NoError(t, err)

	assert.Equal(t, NoEvidenceMessage, s.Ask(ctx, "vectors?"))
	assert.Nil(t, gen.evidence, "generator should not be called")
}

func TestQuery_ErrorReply(t *testing.T) {
	s := newTestService(t, nil)
	upload(t, s, "a.txt", "Alpha document about vectors.")
	_, err := s.IngestDefault(context.Background())
	require.NoError(t, err)

	// A canceled context fails to take the read lock on the index.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply := s.Ask(ctx, "vectors?")
	assert.True(t, strings.HasPrefix(reply, "I apologize, but I encountered an error while processing your question: "), reply)
	assert.Contains(t, reply, context.Canceled.Error())
}

func TestIngest_MissingSourcesDirKeepsKnowledgeBase(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestService(t, gen)
	ctx := context.Background()
	upload(t, s, "a.txt", "Alpha document about vectors.")
	_, err := s.IngestDefault(ctx)
	require.NoError(t, err)

	stats, err := s.Ingest(ctx, filepath.Join(t.TempDir(), "typo-does-not-exist"), s.cfg.Storage.IndexDir)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesRemoved)
	assert.True(t, storage.Exists(s.cfg.Storage.IndexDir))

	assert.Equal(t, "stub answer to vectors?", s.Ask(ctx, "vectors?"))
	require.NotEmpty(t, gen.evidence)
	assert.Equal(t, "a.txt", gen.evidence[0].Metadata.Source)
}

func TestIngestAndQuery_HelloWorld(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestService(t, gen)
	ctx := context.Background()

	upload(t, s, "a.txt", strings.Repeat("hello world. ", 100))
	stats, err := s.IngestDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIngested)
	assert.GreaterOrEqual(t, stats.TotalChunks, 2)

	reply := s.Ask(ctx, "hello")
	assert.Equal(t, "stub answer to hello", reply)
	require.NotEmpty(t, gen.evidence)
	assert.LessOrEqual(t, len(gen.evidence), 5)
	for _, e := range gen.evidence {
		assert.Equal(t, "a.txt", e.Metadata.Source)
	}
}

func TestQuery_FallbackGenerator(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	upload(t, s, "notes.txt", "Contexter stores chunk vectors in a flat index.")
	_, err := s.IngestDefault(ctx)
	require.NoError(t, err)

	reply := s.Ask(ctx, "where are vectors stored?")
	assert.Contains(t, reply, `related to your question: "where are vectors stored?"`)
	assert.Contains(t, reply, "Contexter stores chunk vectors in a flat index....")
}

func TestIngest_SkipsUnsupportedAndDeleteRebuilds(t *testing.T) {
	gen := &stubGenerator{}
	s := newTestService(t, gen)
	ctx := context.Background()

	upload(t, s, "apples.txt", "Apples are red fruit.")
	upload(t, s, "bananas.txt", "Bananas are yellow fruit.")
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.Storage.SourcesDir, "data.xyz"), []byte("xyz"), 0644))

	stats, err := s.IngestDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIngested)
	assert.Equal(t, 1, stats.FilesSkipped)

	kbStats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, kbStats.TotalDocuments)
	assert.Equal(t, 2, kbStats.TotalChunks)
	assert.Equal(t, 64, kbStats.Dimensions)
	assert.Positive(t, kbStats.IndexSizeBytes)

	_, err = s.DeleteDocument(ctx, "apples.txt")
	require.NoError(t, err)

	s.Ask(ctx, "Apples are red fruit.")
	require.NotEmpty(t, gen.evidence)
	for _, e := range gen.evidence {
		assert.NotEqual(t, "apples.txt", e.Metadata.Source)
	}

	docs, err := s.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bananas.txt", docs[0].Filename)
}

func TestDeleteLastDocument(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	upload(t, s, "only.txt", "Single document.")
	_, err := s.IngestDefault(ctx)
	require.NoError(t, err)

	_, err = s.DeleteDocument(ctx, "only.txt")
	require.NoError(t, err)
	assert.Equal(t, NoKnowledgeBaseMessage, s.Ask(ctx, "anything"))

	kbStats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, kbStats.TotalChunks)
}

func TestSaveUpload_Validation(t *testing.T) {
	s := newTestService(t, nil)

	_, err := s.SaveUpload("malware.exe", strings.NewReader("x"))
	assert.True(t, errors.Is(err, extract.ErrUnsupportedFormat))

	for _, name := range []string{"", "..", "../escape.txt", "dir/a.txt", `dir\a.txt`, ".hidden.txt"} {
		_, err := s.SaveUpload(name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidFilename, "name %q", name)
	}

	name, err := s.SaveUpload("Report.TXT", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, "Report.TXT", name)
	data, err := os.ReadFile(filepath.Join(s.cfg.Storage.SourcesDir, name))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestDeleteDocument_Errors(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()

	_, err := s.DeleteDocument(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = s.DeleteDocument(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestSearch(t *testing.T) {
	s := newTestService(t, nil)
	ctx := context.Background()
	upload(t, s, "notes.txt", "Bleve builds an inverted index over chunk texts.")
	_, err := s.IngestDefault(ctx)
	require.NoError(t, err)

	resp, err := s.Search(ctx, &models.KeywordQuery{Query: "inverted"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "notes.txt", resp.Results[0].Metadata.Source)
}

func TestDocuments_EmptyWhenNoUploads(t *testing.T) {
	s := newTestService(t, nil)
	docs, err := s.Documents()
	require.NoError(t, err)
	assert.Empty(t, docs)
}
