package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/vector"
	"github.com/hyperjump/contexter/pkg/utils"
)

// KnowledgeBase is the in-memory form of a persisted index directory. Position i of Index,
// Metadata and Texts describe the same chunk.
type KnowledgeBase struct {
	Index    vector.VectorIndex
	Metadata []models.ChunkMetadata
	Texts    []string
	Manifest map[string]models.ManifestEntry
}

// Size returns the number of chunks.
func (kb *KnowledgeBase) Size() int {
	if kb == nil {
		return 0
	}
	return len(kb.Texts)
}

// Dimensions returns the vector dimension, or 0 without an index.
func (kb *KnowledgeBase) Dimensions() int {
	if kb == nil || kb.Index == nil {
		return 0
	}
	return kb.Index.Dimensions()
}

// Chunks returns the chunk texts paired with their metadata.
func (kb *KnowledgeBase) Chunks() []models.Chunk {
	chunks := make([]models.Chunk, len(kb.Texts))
	for i := range kb.Texts {
		chunks[i] = models.Chunk{Text: kb.Texts[i], Metadata: kb.Metadata[i]}
	}
	return chunks
}

// Validate checks that the index, metadata and texts are aligned.
func (kb *KnowledgeBase) Validate() error {
	if kb.Index == nil {
		return errors.New("knowledge base has no index")
	}
	if n := kb.Index.Size(); n != len(kb.Metadata) || n != len(kb.Texts) {
		return fmt.Errorf("knowledge base misaligned: %d vectors, %d metadata, %d texts",
			n, len(kb.Metadata), len(kb.Texts))
	}
	return nil
}

// Close releases the vector index.
func (kb *KnowledgeBase) Close() error {
	if kb == nil || kb.Index == nil {
		return nil
	}
	return kb.Index.Close()
}

// Store loads and saves knowledge bases in index directories.
type Store struct {
	backend      string
	logger       *zap.Logger
	openMetadata func(path string) (MetadataStore, error)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for recoverable load problems.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMetadataOpener replaces the SQLite metadata store with the one open returns.
func WithMetadataOpener(open func(path string) (MetadataStore, error)) StoreOption {
	return func(s *Store) {
		s.openMetadata = open
	}
}

func openSQLiteMetadata(path string) (MetadataStore, error) {
	return OpenSQLiteStore(path)
}

// NewStore returns a Store that rebuilds loaded vectors into indexes of the given backend.
func NewStore(backend string, opts ...StoreOption) *Store {
	s := &Store{backend: backend, openMetadata: openSQLiteMetadata}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Backend returns the vector index type the store builds.
func (s *Store) Backend() string {
	return s.backend
}

// Exists reports whether both persisted artifacts are present in dir.
func Exists(dir string) bool {
	for _, name := range []string{VectorsFile, MetadataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Load reads the knowledge base in dir. It returns nil and no error when the knowledge base is
// absent, including when the artifacts are missing or do not agree with each other.
func (s *Store) Load(ctx context.Context, dir string) (*KnowledgeBase, error) {
	if !Exists(dir) {
		return nil, nil
	}

	meta, chunks, manifest, err := s.readMetadata(ctx, dir)
	if err != nil {
		s.logger.Warn("metadata store unreadable, treating knowledge base as absent",
			zap.String("dir", dir), zap.Error(err))
		return nil, nil
	}
	if meta == nil {
		return nil, nil
	}

	dims, vecs, checksum, err := vector.ReadFile(filepath.Join(dir, VectorsFile))
	if err != nil {
		s.logger.Warn("vector file unreadable, treating knowledge base as absent",
			zap.String("dir", dir), zap.Error(err))
		return nil, nil
	}
	switch {
	case checksum != meta.Checksum:
		s.logger.Warn("vector file checksum mismatch, treating knowledge base as absent", zap.String("dir", dir))
		return nil, nil
	case len(vecs) != meta.VectorCount || dims != meta.Dimensions:
		s.logger.Warn("vector file does not match metadata, treating knowledge base as absent",
			zap.Int("vectors", len(vecs)), zap.Int("expected", meta.VectorCount))
		return nil, nil
	case len(chunks) != len(vecs):
		s.logger.Warn("chunk count does not match vectors, treating knowledge base as absent",
			zap.Int("chunks", len(chunks)), zap.Int("vectors", len(vecs)))
		return nil, nil
	}

	idx, err := vector.Build(ctx, s.backend, dims, vecs)
	if err != nil {
		return nil, fmt.Errorf("build %s index: %w", s.backend, err)
	}

	kb := &KnowledgeBase{
		Index:    idx,
		Metadata: make([]models.ChunkMetadata, len(chunks)),
		Texts:    make([]string, len(chunks)),
		Manifest: make(map[string]models.ManifestEntry, len(manifest)),
	}
	for i, c := range chunks {
		kb.Metadata[i] = c.Metadata
		kb.Texts[i] = c.Text
	}
	for _, e := range manifest {
		kb.Manifest[e.Source] = e
	}
	return kb, nil
}

func (s *Store) readMetadata(ctx context.Context, dir string) (*Meta, []models.Chunk, []models.ManifestEntry, error) {
	db, err := s.openMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, nil, nil, err
	}
	defer db.Close()

	meta, ok, err := db.Meta(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, nil
	}
	chunks, err := db.Chunks(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	manifest, err := db.Manifest(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return &meta, chunks, manifest, nil
}

// Save persists kb to dir. The vector file is written beside the old one, the metadata
// transaction commits, and only then is the new vector file renamed into place. A crash between
// the two leaves a checksum mismatch that Load reports as absent. Any keyword index is removed
// first since its document IDs are positions in the previous chunk list; callers rebuild it.
func (s *Store) Save(ctx context.Context, dir string, kb *KnowledgeBase) error {
	if err := kb.Validate(); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(dir, KeywordDir)); err != nil {
		return fmt.Errorf("remove stale keyword index: %w", err)
	}
	vecs, err := kb.Index.Vectors()
	if err != nil {
		return fmt.Errorf("read index vectors: %w", err)
	}

	final := filepath.Join(dir, VectorsFile)
	tmp := final + ".tmp"
	checksum, err := vector.WriteFile(tmp, kb.Index.Dimensions(), vecs)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write vectors: %w", err)
	}

	snap := &Snapshot{
		Chunks: kb.Chunks(),
		Meta: Meta{
			VectorCount: len(vecs),
			Dimensions:  kb.Index.Dimensions(),
			Checksum:    checksum,
			UpdatedAt:   time.Now(),
		},
	}
	for _, e := range kb.Manifest {
		snap.Manifest = append(snap.Manifest, e)
	}

	db, err := s.openMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := db.ReplaceAll(ctx, snap); err != nil {
		_ = db.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("commit metadata: %w", err)
	}
	if err := db.Close(); err != nil {
		s.logger.Warn("close metadata store", zap.Error(err))
	}

	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("install vectors: %w", err)
	}
	return nil
}

// Remove deletes every persisted artifact in dir, leaving the directory itself.
func (s *Store) Remove(dir string) error {
	names := []string{VectorsFile, VectorsFile + ".tmp", MetadataFile, MetadataFile + "-wal", MetadataFile + "-shm", KeywordDir}
	for _, name := range names {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// SourceCounts returns chunks per source from the metadata store without loading vectors.
// The map is empty when no knowledge base exists.
func (s *Store) SourceCounts(ctx context.Context, dir string) (map[string]int, error) {
	if !Exists(dir) {
		return map[string]int{}, nil
	}
	db, err := s.openMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.SourceCounts(ctx)
}

// Chunks returns the committed chunks in position order without loading vectors. It returns nil
// when no knowledge base exists.
func (s *Store) Chunks(ctx context.Context, dir string) ([]models.Chunk, error) {
	if !Exists(dir) {
		return nil, nil
	}
	db, err := s.openMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Chunks(ctx)
}

// Manifest returns the ingested source records for dir without loading vectors. It returns nil
// when no knowledge base exists.
func (s *Store) Manifest(ctx context.Context, dir string) ([]models.ManifestEntry, error) {
	if !Exists(dir) {
		return nil, nil
	}
	db, err := s.openMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.Manifest(ctx)
}

// Meta returns the committed vector file description for dir. ok is false when no knowledge
// base exists.
func (s *Store) Meta(ctx context.Context, dir string) (Meta, bool, error) {
	if !Exists(dir) {
		return Meta{}, false, nil
	}
	db, err := s.openMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return Meta{}, false, err
	}
	defer db.Close()
	return db.Meta(ctx)
}
