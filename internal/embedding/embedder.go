// Package embedding provides text embedding via ONNX, OpenAI, caching and timeouts.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Embedder produces L2-normalized vector embeddings for text.
// EmbedBatch is order-preserving and returns either one vector per input or an error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// timeoutEmbedder bounds every call of the wrapped embedder.
type timeoutEmbedder struct {
	Embedder
	timeout time.Duration
}

// WithTimeout returns e with each call bounded by d. A non-positive d returns e unchanged.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{Embedder: e, timeout: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Embedder.Embed(ctx, text)
}

func (t *timeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Embedder.EmbedBatch(ctx, texts)
}

// checkBatch verifies an embedder returned one vector of the expected size per input.
func checkBatch(out [][]float32, n, dims int) error {
	if len(out) != n {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(out), n)
	}
	for i, v := range out {
		if len(v) != dims {
			return fmt.Errorf("embedding %d dimension mismatch: got %d, expected %d", i, len(v), dims)
		}
	}
	return nil
}
