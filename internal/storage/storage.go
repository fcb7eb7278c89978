// Package storage persists the knowledge base: the vector file, the SQLite metadata store and
// the lock that serializes writers against readers.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/contexter/internal/models"
)

// File names inside an index directory.
const (
	VectorsFile  = "vectors.bin"
	MetadataFile = "metadata.db"
	KeywordDir   = "keyword.bleve"
	LockFile     = ".lock"
)

// Meta describes the vector file a metadata store was committed against.
type Meta struct {
	VectorCount int
	Dimensions  int
	Checksum    string
	UpdatedAt   time.Time
}

// Snapshot is everything the metadata store holds for one committed knowledge base.
type Snapshot struct {
	Chunks   []models.Chunk
	Manifest []models.ManifestEntry
	Meta     Meta
}

// MetadataStore persists chunk texts, chunk metadata and the ingestion manifest.
type MetadataStore interface {
	// ReplaceAll swaps the stored snapshot for snap atomically.
	ReplaceAll(ctx context.Context, snap *Snapshot) error

	Chunks(ctx context.Context) ([]models.Chunk, error)
	Manifest(ctx context.Context) ([]models.ManifestEntry, error)
	// Meta returns ok=false when nothing has been committed.
	Meta(ctx context.Context) (meta Meta, ok bool, err error)
	SourceCounts(ctx context.Context) (map[string]int, error)

	Close() error
}
