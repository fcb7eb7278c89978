// Package indexer provides text cleaning, chunking and the ingestion pipeline.
package indexer

import (
	"strings"

	"github.com/hyperjump/contexter/internal/models"
)

// Default chunk window settings, in characters.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultBoundaryWindow = 100
)

// Chunker splits text into overlapping character windows, preferring to end a window just
// after a sentence terminator.
type Chunker struct {
	size     int
	overlap  int
	boundary int
}

// NewChunker creates a chunker. Invalid settings (size <= 0, overlap outside [0, size)) fall back
// to the defaults; a boundary window outside [0, size] is clamped.
func NewChunker(size, overlap, boundaryWindow int) *Chunker {
	if size <= 0 || overlap < 0 || overlap >= size {
		size, overlap = DefaultChunkSize, DefaultChunkOverlap
	}
	if boundaryWindow < 0 {
		boundaryWindow = 0
	}
	if boundaryWindow > size {
		boundaryWindow = size
	}
	return &Chunker{size: size, overlap: overlap, boundary: boundaryWindow}
}

// Split returns the ordered, non-empty, trimmed chunk texts of text.
//
// Each window starts overlap characters before the previous window's end. A window that does
// not reach the end of the text is cut just after its last '.' when that period lies within
// the final boundaryWindow characters; otherwise it is cut hard at size. Windows continue until
// one would start past the text, so a tail shorter than overlap still gets its own chunk.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n <= c.size {
		if s := strings.TrimSpace(text); s != "" {
			return []string{s}
		}
		return nil
	}

	var chunks []string
	for start := 0; start < n; {
		// end may run past the text; the next window is placed from it, not from the cut.
		end := start + c.size
		cut := n
		if end < n {
			if dot := lastPeriod(runes, start, end); dot > start+c.size-c.boundary {
				end = dot + 1
			}
			cut = end
		}
		if s := strings.TrimSpace(string(runes[start:cut])); s != "" {
			chunks = append(chunks, s)
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// Chunk splits text and attaches provenance for source.
func (c *Chunker) Chunk(source, text string) []models.Chunk {
	parts := c.Split(text)
	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.Chunk{
			Text: p,
			Metadata: models.ChunkMetadata{
				Source:      source,
				ChunkID:     i,
				TotalChunks: len(parts),
				TextLength:  len([]rune(p)),
			},
		}
	}
	return chunks
}

func lastPeriod(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '.' {
			return i
		}
	}
	return -1
}
