package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/contexter/internal/models"
)

var _ MetadataStore = (*SQLiteStore)(nil)

// SQLiteStore implements MetadataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		position INTEGER PRIMARY KEY,
		source TEXT NOT NULL,
		chunk_id INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		text_length INTEGER NOT NULL,
		text TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);

	CREATE TABLE IF NOT EXISTS manifest (
		source TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		mod_time TIMESTAMP,
		chunks INTEGER NOT NULL,
		ingested_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceAll deletes the previous snapshot and writes snap in a single transaction.
func (s *SQLiteStore) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"chunks", "manifest", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (position, source, chunk_id, total_chunks, text_length, text)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()
	for i, c := range snap.Chunks {
		m := c.Metadata
		if _, err := chunkStmt.ExecContext(ctx, i, m.Source, m.ChunkID, m.TotalChunks, m.TextLength, c.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	manifestStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO manifest (source, content_hash, size, mod_time, chunks, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer manifestStmt.Close()
	for _, e := range snap.Manifest {
		if _, err := manifestStmt.ExecContext(ctx, e.Source, e.ContentHash, e.Size, e.ModTime.UTC(), e.Chunks, e.IngestedAt.UTC()); err != nil {
			return fmt.Errorf("insert manifest %s: %w", e.Source, err)
		}
	}

	updated := snap.Meta.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	meta := map[string]string{
		"vector_count": strconv.Itoa(snap.Meta.VectorCount),
		"dimensions":   strconv.Itoa(snap.Meta.Dimensions),
		"checksum":     snap.Meta.Checksum,
		"updated_at":   updated.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Chunks returns every chunk ordered by position.
func (s *SQLiteStore) Chunks(ctx context.Context) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, chunk_id, total_chunks, text_length, text FROM chunks ORDER BY position`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		m := &c.Metadata
		if err := rows.Scan(&m.Source, &m.ChunkID, &m.TotalChunks, &m.TextLength, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Manifest returns the ingested source files ordered by name.
func (s *SQLiteStore) Manifest(ctx context.Context) ([]models.ManifestEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, content_hash, size, mod_time, chunks, ingested_at FROM manifest ORDER BY source`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ManifestEntry
	for rows.Next() {
		var e models.ManifestEntry
		if err := rows.Scan(&e.Source, &e.ContentHash, &e.Size, &e.ModTime, &e.Chunks, &e.IngestedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Meta returns the committed vector file description.
func (s *SQLiteStore) Meta(ctx context.Context) (Meta, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, false, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, false, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, false, err
	}
	if len(values) == 0 {
		return Meta{}, false, nil
	}

	var m Meta
	if m.VectorCount, err = strconv.Atoi(values["vector_count"]); err != nil {
		return Meta{}, false, fmt.Errorf("meta vector_count: %w", err)
	}
	if m.Dimensions, err = strconv.Atoi(values["dimensions"]); err != nil {
		return Meta{}, false, fmt.Errorf("meta dimensions: %w", err)
	}
	m.Checksum = values["checksum"]
	if ts := values["updated_at"]; ts != "" {
		m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if m.Checksum == "" {
		return Meta{}, false, errors.New("meta checksum missing")
	}
	return m, true, nil
}

// SourceCounts returns the number of chunks per source file.
func (s *SQLiteStore) SourceCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM chunks GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, err
		}
		counts[src] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
