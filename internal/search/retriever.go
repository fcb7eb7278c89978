// Package search retrieves evidence for questions and runs keyword and hybrid searches over the
// knowledge base.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/metrics"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/storage"
	"github.com/hyperjump/contexter/pkg/utils"
)

var (
	// ErrNoKnowledgeBase means the index directory holds no usable knowledge base.
	ErrNoKnowledgeBase = errors.New("no knowledge base found")
	// ErrNoChunks means the knowledge base exists but holds no chunk texts.
	ErrNoChunks = errors.New("no text chunks found")
)

// DefaultTopK is the number of evidence chunks retrieved per question.
const DefaultTopK = 5

// Retriever finds the chunks most similar to a question.
type Retriever struct {
	embedder embedding.Embedder
	store    *storage.Store
	locker   *storage.Locker
	topK     int
	logger   *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithLocker shares a Locker with the indexer writing the same directories.
func WithLocker(l *storage.Locker) RetrieverOption {
	return func(r *Retriever) { r.locker = l }
}

// WithTopK sets how many chunks Retrieve returns. Values <= 0 keep DefaultTopK.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// NewRetriever creates a retriever that embeds questions with embedder.
func NewRetriever(embedder embedding.Embedder, store *storage.Store, opts ...RetrieverOption) *Retriever {
	r := &Retriever{embedder: embedder, store: store, topK: DefaultTopK}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	if r.locker == nil {
		r.locker = storage.NewLocker()
	}
	return r
}

// TopK returns the configured result count.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve returns up to TopK evidence chunks for query, best first. A failure to embed the
// query yields no evidence rather than an error.
func (r *Retriever) Retrieve(ctx context.Context, query, indexDir string) ([]models.Evidence, error) {
	kb, err := loadShared(ctx, r.locker, r.store, indexDir)
	if err != nil {
		return nil, err
	}
	defer kb.Close()
	if kb == nil {
		return nil, ErrNoKnowledgeBase
	}
	if len(kb.Texts) == 0 {
		return nil, ErrNoChunks
	}

	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		metrics.EmbeddingErrorsTotal.WithLabelValues("query").Inc()
		r.logger.Warn("failed to embed query", zap.Error(err))
		return nil, nil
	}

	k := min(r.topK, kb.Index.Size())
	results, err := kb.Index.Search(ctx, qv, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	evidence := make([]models.Evidence, 0, len(results))
	for _, res := range results {
		if res.Position < 0 || res.Position >= len(kb.Texts) || res.Position >= len(kb.Metadata) {
			continue
		}
		evidence = append(evidence, models.Evidence{
			Text:     kb.Texts[res.Position],
			Metadata: kb.Metadata[res.Position],
			Score:    res.Score,
		})
	}
	sort.SliceStable(evidence, func(i, j int) bool { return evidence[i].Score > evidence[j].Score })

	r.logger.Debug("retrieved evidence", zap.Int("results", len(evidence)), zap.Int("top_k", k))
	return evidence, nil
}

// loadShared loads the knowledge base while holding the shared lock on indexDir.
func loadShared(ctx context.Context, locker *storage.Locker, store *storage.Store, indexDir string) (*storage.KnowledgeBase, error) {
	unlock, err := locker.RLock(ctx, indexDir)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return store.Load(ctx, indexDir)
}
