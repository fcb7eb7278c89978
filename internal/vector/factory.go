package vector

import (
	"context"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat uses in-memory brute-force search.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS uses a FAISS IndexFlatIP. Requires the FAISS library and -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewVectorIndex creates an empty vector index of the specified type ("flat" when empty).
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return NewFlatIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// Build creates an index of the given type holding vectors in order.
func Build(ctx context.Context, indexType string, dimensions int, vectors [][]float32) (VectorIndex, error) {
	idx, err := NewVectorIndex(indexType, dimensions)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(ctx, vectors); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// Merge appends vectors to existing in place and returns it. When existing is nil a fresh index
// of indexType sized to dimensions is built.
func Merge(ctx context.Context, existing VectorIndex, vectors [][]float32, indexType string, dimensions int) (VectorIndex, error) {
	if existing == nil {
		return Build(ctx, indexType, dimensions, vectors)
	}
	if existing.Dimensions() != dimensions {
		return nil, fmt.Errorf("merge dimension mismatch: index has %d, vectors have %d", existing.Dimensions(), dimensions)
	}
	if err := existing.Add(ctx, vectors); err != nil {
		return nil, err
	}
	return existing, nil
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
