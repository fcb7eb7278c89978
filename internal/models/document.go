// Package models defines core data structures for chunks, evidence, and knowledge base state.
package models

import "time"

// ChunkMetadata is the provenance of one chunk. Field names are part of the on-disk contract.
type ChunkMetadata struct {
	Source      string `json:"source" db:"source"`
	ChunkID     int    `json:"chunk_id" db:"chunk_id"`
	TotalChunks int    `json:"total_chunks" db:"total_chunks"`
	TextLength  int    `json:"text_length" db:"text_length"`
}

// Chunk is a slice of cleaned document text together with its provenance.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ManifestEntry records a source file that has been ingested.
type ManifestEntry struct {
	Source      string    `json:"source" db:"source"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	Size        int64     `json:"size" db:"size"`
	ModTime     time.Time `json:"mod_time" db:"mod_time"`
	Chunks      int       `json:"chunks" db:"chunks"`
	IngestedAt  time.Time `json:"ingested_at" db:"ingested_at"`
}

// DocumentInfo describes an uploaded source document.
type DocumentInfo struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}
