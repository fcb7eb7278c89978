// Package vector provides positional inner-product vector indices and their file format.
package vector

import "context"

// VectorIndex is an append-only, ordered collection of vectors searched by inner product.
// A vector's position is its insertion order; positions are never reused or removed.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Vectors returns a copy of every vector in position order.
	Vectors() ([][]float32, error)
	Dimensions() int
	Size() int
	Type() string
	Close() error
}

// VectorResult is a single search hit.
type VectorResult struct {
	Position int
	Score    float64 // Inner product; cosine similarity for normalized vectors.
}
