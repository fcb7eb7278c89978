package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/extract"
	"github.com/hyperjump/contexter/internal/fileid"
	"github.com/hyperjump/contexter/internal/keyword"
	"github.com/hyperjump/contexter/internal/metrics"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/storage"
	"github.com/hyperjump/contexter/internal/vector"
	"github.com/hyperjump/contexter/pkg/utils"
)

// ErrorKind classifies ingestion failures.
type ErrorKind string

const (
	KindSource      ErrorKind = "source"
	KindEmbedding   ErrorKind = "embedding"
	KindPersistence ErrorKind = "persistence"
)

// IngestError is returned by Process when a run aborts. Nothing is saved when it is returned.
type IngestError struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *IngestError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("ingest %s (%s): %v", e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("ingest %s: %v", e.Kind, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// Indexer turns a directory of source documents into a persisted knowledge base.
type Indexer struct {
	extractor *extract.Extractor
	chunker   *Chunker
	embedder  embedding.Embedder
	store     *storage.Store
	locker    *storage.Locker
	keyword   bool
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for run progress and skipped files.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithLocker shares a Locker with other components using the same index directories.
func WithLocker(l *storage.Locker) IndexerOption {
	return func(idx *Indexer) { idx.locker = l }
}

// WithKeywordIndex toggles rebuilding the keyword index after each save. Enabled by default.
func WithKeywordIndex(enabled bool) IndexerOption {
	return func(idx *Indexer) { idx.keyword = enabled }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	extractor *extract.Extractor,
	chunker *Chunker,
	embedder embedding.Embedder,
	store *storage.Store,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		keyword:   true,
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	if idx.locker == nil {
		idx.locker = storage.NewLocker()
	}
	return idx
}

type sourceFile struct {
	name    string
	path    string
	size    int64
	modTime time.Time
	hash    string
}

// Process ingests sourcesDir into the knowledge base in indexDir. Unchanged files keep their
// chunks and vectors; new and changed files are extracted, chunked and embedded. Removing or
// changing a file rebuilds the index from the surviving vectors.
func (idx *Indexer) Process(ctx context.Context, sourcesDir, indexDir string) (*models.IngestStats, error) {
	start := time.Now()
	stats := &models.IngestStats{RunID: uuid.NewString()}
	log := idx.logger.With(zap.String("run_id", stats.RunID))

	stats, outcome, err := idx.process(ctx, sourcesDir, indexDir, stats, log)
	stats.DurationMS = time.Since(start).Milliseconds()

	metrics.IngestRunsTotal.WithLabelValues(outcome).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("ingestion failed", zap.Error(err))
		return stats, err
	}
	metrics.IngestChunksTotal.Add(float64(stats.NewChunks))
	metrics.KnowledgeBaseChunks.Set(float64(stats.TotalChunks))
	log.Info("ingestion finished",
		zap.String("outcome", outcome),
		zap.Int("files_ingested", stats.FilesIngested),
		zap.Int("files_reused", stats.FilesReused),
		zap.Int("files_removed", stats.FilesRemoved),
		zap.Int("new_chunks", stats.NewChunks),
		zap.Int("total_chunks", stats.TotalChunks),
		zap.Int64("duration_ms", stats.DurationMS))
	return stats, nil
}

func (idx *Indexer) process(ctx context.Context, sourcesDir, indexDir string, stats *models.IngestStats, log *zap.Logger) (*models.IngestStats, string, error) {
	files, skipped, err := idx.listSources(sourcesDir, log)
	if errors.Is(err, fs.ErrNotExist) {
		// A missing directory is not an empty one: never clear the knowledge base for it.
		log.Warn("sources directory does not exist, nothing to ingest", zap.String("dir", sourcesDir))
		return stats, "noop", nil
	}
	if err != nil {
		return stats, "error", &IngestError{Kind: KindSource, Source: sourcesDir, Err: err}
	}
	stats.FilesSeen = len(files) + skipped
	stats.FilesSkipped = skipped

	unlock, err := idx.locker.Lock(ctx, indexDir)
	if err != nil {
		return stats, "error", &IngestError{Kind: KindPersistence, Err: err}
	}
	defer unlock()

	kb, err := idx.store.Load(ctx, indexDir)
	if err != nil {
		return stats, "error", &IngestError{Kind: KindPersistence, Err: err}
	}
	defer kb.Close()

	known := -1
	if kb != nil {
		known = len(kb.Manifest)
	}
	dims := idx.embedder.Dimensions()
	if kb != nil && kb.Dimensions() != dims {
		log.Warn("embedding dimension changed, re-embedding every source",
			zap.Int("stored", kb.Dimensions()), zap.Int("embedder", dims))
		_ = kb.Close()
		kb = nil
	}

	if len(files) == 0 {
		// Checked against the stored knowledge base, which may have been dropped above for a
		// dimension change but still has artifacts on disk.
		if known < 0 {
			log.Info("no source documents, nothing to ingest", zap.String("dir", sourcesDir))
			return stats, "noop", nil
		}
		stats.FilesRemoved = known
		stats.Rebuilt = true
		if err := idx.store.Remove(indexDir); err != nil {
			return stats, "error", &IngestError{Kind: KindPersistence, Err: err}
		}
		log.Info("every source removed, knowledge base cleared")
		return stats, "ok", nil
	}

	var previous map[string]models.ManifestEntry
	if kb != nil {
		previous = kb.Manifest
	}
	manifest := make(map[string]models.ManifestEntry, len(files))
	unchanged := make(map[string]bool)
	var pending []sourceFile
	changed := false
	for _, f := range files {
		prev, known := previous[f.name]
		hash, err := fileid.ContentHash(f.path)
		if err != nil {
			log.Warn("failed to hash source, skipping", zap.String("source", f.name), zap.Error(err))
			stats.FilesSkipped++
			if known {
				manifest[f.name] = prev
				unchanged[f.name] = true
			}
			continue
		}
		f.hash = hash
		switch {
		case known && prev.ContentHash == hash:
			manifest[f.name] = prev
			unchanged[f.name] = true
			stats.FilesReused++
		case known:
			changed = true
			pending = append(pending, f)
		default:
			pending = append(pending, f)
		}
	}
	for name := range previous {
		if _, ok := manifest[name]; !ok && !containsPending(pending, name) {
			stats.FilesRemoved++
		}
	}
	rebuild := changed || stats.FilesRemoved > 0

	if len(pending) == 0 && !rebuild {
		stats.TotalChunks = kb.Size()
		log.Debug("sources unchanged", zap.Int("files", len(files)))
		return stats, "noop", nil
	}

	var newChunks []models.Chunk
	now := time.Now()
	for _, f := range pending {
		if err := ctx.Err(); err != nil {
			return stats, "error", err
		}
		text, err := idx.extractor.Extract(f.path)
		if err != nil {
			log.Warn("failed to extract text, skipping", zap.String("source", f.name), zap.Error(err))
			stats.FilesSkipped++
			continue
		}
		chunks := idx.chunker.Chunk(f.name, Clean(text))
		if len(chunks) == 0 {
			log.Warn("no text extracted", zap.String("source", f.name))
		}
		log.Debug("source chunked", zap.String("source", f.name), zap.Int("chunks", len(chunks)))
		newChunks = append(newChunks, chunks...)
		manifest[f.name] = models.ManifestEntry{
			Source:      f.name,
			ContentHash: f.hash,
			Size:        f.size,
			ModTime:     f.modTime,
			Chunks:      len(chunks),
			IngestedAt:  now,
		}
		stats.FilesIngested++
	}
	stats.NewChunks = len(newChunks)

	var newVectors [][]float32
	if len(newChunks) > 0 {
		texts := make([]string, len(newChunks))
		for i, c := range newChunks {
			texts[i] = c.Text
		}
		newVectors, err = idx.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(newVectors) != len(texts) {
			err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(newVectors), len(texts))
		}
		if err != nil {
			metrics.EmbeddingErrorsTotal.WithLabelValues("ingest").Inc()
			return stats, "error", &IngestError{Kind: KindEmbedding, Err: err}
		}
	}

	next, err := idx.assemble(ctx, kb, unchanged, rebuild, newChunks, newVectors, dims)
	if err != nil {
		return stats, "error", &IngestError{Kind: KindPersistence, Err: err}
	}
	next.Manifest = manifest
	stats.Rebuilt = rebuild || kb == nil
	stats.TotalChunks = next.Size()

	if next.Size() == 0 {
		_ = next.Close()
		if kb != nil {
			if err := idx.store.Remove(indexDir); err != nil {
				return stats, "error", &IngestError{Kind: KindPersistence, Err: err}
			}
			return stats, "ok", nil
		}
		log.Info("sources produced no text, nothing to save")
		return stats, "noop", nil
	}
	if next.Index != kbIndex(kb) {
		defer next.Close()
	}

	if err := idx.store.Save(ctx, indexDir, next); err != nil {
		return stats, "error", &IngestError{Kind: KindPersistence, Err: err}
	}
	if idx.keyword {
		idx.rebuildKeyword(ctx, indexDir, next, log)
	}
	return stats, "ok", nil
}

// assemble builds the knowledge base to save. A rebuild copies the vectors of unchanged sources
// into a fresh index; otherwise new vectors are merged into the loaded index.
func (idx *Indexer) assemble(
	ctx context.Context,
	kb *storage.KnowledgeBase,
	unchanged map[string]bool,
	rebuild bool,
	chunks []models.Chunk,
	vectors [][]float32,
	dims int,
) (*storage.KnowledgeBase, error) {
	next := &storage.KnowledgeBase{}
	var base [][]float32
	if kb != nil && rebuild {
		all, err := kb.Index.Vectors()
		if err != nil {
			return nil, fmt.Errorf("read stored vectors: %w", err)
		}
		for i, m := range kb.Metadata {
			if !unchanged[m.Source] {
				continue
			}
			base = append(base, all[i])
			next.Metadata = append(next.Metadata, m)
			next.Texts = append(next.Texts, kb.Texts[i])
		}
	} else if kb != nil {
		next.Metadata = append(next.Metadata, kb.Metadata...)
		next.Texts = append(next.Texts, kb.Texts...)
	}
	for _, c := range chunks {
		next.Metadata = append(next.Metadata, c.Metadata)
		next.Texts = append(next.Texts, c.Text)
	}

	var err error
	if kb != nil && !rebuild {
		next.Index, err = vector.Merge(ctx, kb.Index, vectors, idx.store.Backend(), dims)
	} else {
		next.Index, err = vector.Build(ctx, idx.store.Backend(), dims, append(base, vectors...))
	}
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (idx *Indexer) rebuildKeyword(ctx context.Context, indexDir string, kb *storage.KnowledgeBase, log *zap.Logger) {
	ki, err := keyword.Rebuild(ctx, filepath.Join(indexDir, storage.KeywordDir), kb.Chunks())
	if err != nil {
		log.Warn("failed to rebuild keyword index", zap.Error(err))
		return
	}
	if err := ki.Close(); err != nil {
		log.Warn("failed to close keyword index", zap.Error(err))
	}
}

// listSources returns the supported regular files directly inside dir, sorted by name, and the
// number of unsupported files passed over. A missing directory yields an error matching
// fs.ErrNotExist.
func (idx *Indexer) listSources(dir string, log *zap.Logger) ([]sourceFile, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read sources dir: %w", err)
	}
	var files []sourceFile
	skipped := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		// Resolve symlinks so only regular files are ingested
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !idx.extractor.Supports(e.Name()) {
			log.Debug("unsupported file type, skipping", zap.String("source", e.Name()))
			skipped++
			continue
		}
		files = append(files, sourceFile{name: e.Name(), path: path, size: info.Size(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, skipped, nil
}

func containsPending(files []sourceFile, name string) bool {
	for _, f := range files {
		if f.name == name {
			return true
		}
	}
	return false
}

func kbIndex(kb *storage.KnowledgeBase) vector.VectorIndex {
	if kb == nil {
		return nil
	}
	return kb.Index
}
