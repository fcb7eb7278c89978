// Package rag wires extraction, ingestion, retrieval and answer generation into the operations
// exposed by the CLI and the HTTP API.
package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/answer"
	"github.com/hyperjump/contexter/internal/config"
	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/extract"
	"github.com/hyperjump/contexter/internal/indexer"
	"github.com/hyperjump/contexter/internal/metrics"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/search"
	"github.com/hyperjump/contexter/internal/storage"
	"github.com/hyperjump/contexter/pkg/utils"
)

// Replies returned by Query instead of errors.
const (
	NoKnowledgeBaseMessage = "No knowledge base found. Please upload and process some documents first."
	NoChunksMessage        = "No text chunks found. Please re-process your documents."
	NoEvidenceMessage      = "I couldn't find relevant information in my knowledge base to answer your question."
	queryErrorFormat       = "I apologize, but I encountered an error while processing your question: %v"
)

var (
	// ErrInvalidFilename is returned for empty names and names that escape the sources directory.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrDocumentNotFound is returned when deleting a file that is not in the sources directory.
	ErrDocumentNotFound = errors.New("document not found")
)

// Service is the application core shared by the CLI and the HTTP server.
type Service struct {
	cfg       *config.Config
	extractor *extract.Extractor
	store     *storage.Store
	indexer   *indexer.Indexer
	retriever *search.Retriever
	searcher  *search.Searcher
	generator answer.Generator
	logger    *zap.Logger
}

// NewService builds a Service around an explicitly constructed embedder and generator.
func NewService(cfg *config.Config, embedder embedding.Embedder, generator answer.Generator, logger *zap.Logger) *Service {
	logger = utils.OrNop(logger)
	extractor := extract.NewExtractor(cfg.Extensions)
	store := storage.NewStore(cfg.Retrieval.Backend, storage.WithStoreLogger(logger))
	locker := storage.NewLocker()
	chunker := indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.OverlapChars(), cfg.Chunking.BoundaryWindow)

	return &Service{
		cfg:       cfg,
		extractor: extractor,
		store:     store,
		indexer: indexer.NewIndexer(extractor, chunker, embedder, store,
			indexer.WithLogger(logger), indexer.WithLocker(locker)),
		retriever: search.NewRetriever(embedder, store,
			search.WithLogger(logger), search.WithLocker(locker), search.WithTopK(cfg.Retrieval.TopK)),
		searcher:  search.NewSearcher(embedder, store, locker, logger),
		generator: generator,
		logger:    logger,
	}
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Ingest processes sourcesDir into the knowledge base at indexDir.
func (s *Service) Ingest(ctx context.Context, sourcesDir, indexDir string) (*models.IngestStats, error) {
	return s.indexer.Process(ctx, sourcesDir, indexDir)
}

// IngestDefault ingests the configured sources directory into the configured index.
func (s *Service) IngestDefault(ctx context.Context) (*models.IngestStats, error) {
	return s.Ingest(ctx, s.cfg.Storage.SourcesDir, s.cfg.Storage.IndexDir)
}

// Query answers question from the knowledge base at indexDir. It always returns a reply.
func (s *Service) Query(ctx context.Context, question, indexDir string) string {
	start := time.Now()
	reply, outcome := s.query(ctx, question, indexDir)
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("query answered", zap.String("outcome", outcome), zap.Duration("took", time.Since(start)))
	return reply
}

func (s *Service) query(ctx context.Context, question, indexDir string) (string, string) {
	evidence, err := s.retriever.Retrieve(ctx, question, indexDir)
	switch {
	case errors.Is(err, search.ErrNoKnowledgeBase):
		return NoKnowledgeBaseMessage, "no_kb"
	case errors.Is(err, search.ErrNoChunks):
		return NoChunksMessage, "no_chunks"
	case err != nil:
		s.logger.Error("query failed", zap.Error(err))
		return fmt.Sprintf(queryErrorFormat, err), "error"
	case len(evidence) == 0:
		return NoEvidenceMessage, "no_evidence"
	}
	return s.generator.Answer(ctx, question, evidence), "answered"
}

// Ask answers question from the configured index.
func (s *Service) Ask(ctx context.Context, question string) string {
	return s.Query(ctx, question, s.cfg.Storage.IndexDir)
}

// Search runs a keyword or hybrid search over the configured index.
func (s *Service) Search(ctx context.Context, q *models.KeywordQuery) (*models.KeywordResponse, error) {
	return s.searcher.Search(ctx, s.cfg.Storage.IndexDir, q)
}

// Stats describes the configured knowledge base. An absent knowledge base has zero counts.
func (s *Service) Stats(ctx context.Context) (*models.KnowledgeBaseStats, error) {
	dir := s.cfg.Storage.IndexDir
	stats := &models.KnowledgeBaseStats{Sources: map[string]int{}}

	meta, ok, err := s.store.Meta(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base meta: %w", err)
	}
	if ok {
		stats.Dimensions = meta.Dimensions
		counts, err := s.store.SourceCounts(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("count chunks: %w", err)
		}
		stats.Sources = counts
		for _, n := range counts {
			stats.TotalChunks += n
		}
		stats.TotalDocuments = len(counts)
	}
	stats.IndexSizeBytes, err = storage.IndexSizeBytes(dir)
	if err != nil {
		return nil, fmt.Errorf("index disk usage: %w", err)
	}
	return stats, nil
}

// Supports reports whether filename has an ingestible extension.
func (s *Service) Supports(filename string) bool {
	return s.extractor.Supports(filename)
}

// Extensions returns the accepted upload extensions.
func (s *Service) Extensions() []string {
	return s.extractor.Extensions()
}

// Documents lists the supported files in the sources directory, sorted by name.
func (s *Service) Documents() ([]models.DocumentInfo, error) {
	entries, err := os.ReadDir(s.cfg.Storage.SourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.DocumentInfo{}, nil
		}
		return nil, err
	}
	docs := make([]models.DocumentInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !s.extractor.Supports(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, models.DocumentInfo{Filename: e.Name(), Size: info.Size(), UploadedAt: info.ModTime()})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

// SaveUpload writes r into the sources directory as filename, replacing any existing file.
func (s *Service) SaveUpload(filename string, r io.Reader) (string, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return "", err
	}
	if !s.extractor.Supports(name) {
		return "", fmt.Errorf("%s: %w", filepath.Ext(name), extract.ErrUnsupportedFormat)
	}
	dir := s.cfg.Storage.SourcesDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create sources dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	s.logger.Info("document uploaded", zap.String("filename", name))
	return name, nil
}

// DeleteDocument removes filename from the sources directory and re-ingests so its chunks
// leave the knowledge base.
func (s *Service) DeleteDocument(ctx context.Context, filename string) (*models.IngestStats, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.cfg.Storage.SourcesDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil || os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrDocumentNotFound)
		}
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("remove %s: %w", name, err)
	}
	s.logger.Info("document deleted", zap.String("filename", name))
	return s.IngestDefault(ctx)
}

// cleanFilename accepts a bare file name only.
func cleanFilename(filename string) (string, error) {
	name := strings.TrimSpace(filename)
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%q: %w", filename, ErrInvalidFilename)
	}
	return name, nil
}
