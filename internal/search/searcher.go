package search

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/keyword"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/ranking"
	"github.com/hyperjump/contexter/internal/storage"
	"github.com/hyperjump/contexter/internal/vector"
	"github.com/hyperjump/contexter/pkg/utils"
)

// Default hybrid weights and result shaping.
const (
	DefaultKeywordWeight  = 0.5
	DefaultSemanticWeight = 0.5
	DefaultPhraseBoost    = 1.5
	SnippetLength         = 240
	minCandidates         = 20
)

// Searcher runs keyword searches over chunk texts, optionally fused with vector similarity.
type Searcher struct {
	embedder embedding.Embedder
	store    *storage.Store
	locker   *storage.Locker
	ranker   *ranking.Ranker
	logger   *zap.Logger
}

// NewSearcher creates a searcher. embedder is only used in hybrid mode and may be nil otherwise.
func NewSearcher(embedder embedding.Embedder, store *storage.Store, locker *storage.Locker, logger *zap.Logger) *Searcher {
	if locker == nil {
		locker = storage.NewLocker()
	}
	return &Searcher{
		embedder: embedder,
		store:    store,
		locker:   locker,
		ranker:   ranking.NewRanker(nil),
		logger:   utils.OrNop(logger),
	}
}

type snapshot struct {
	chunks []models.Chunk
	index  vector.VectorIndex
	kw     *keyword.BleveIndex

	// modTimes maps sources to their modification time; only read for reranking.
	modTimes map[string]time.Time
}

func (s *snapshot) close() {
	if s.index != nil {
		_ = s.index.Close()
	}
	if s.kw != nil {
		_ = s.kw.Close()
	}
}

// Search runs q against the knowledge base in indexDir. When nothing matches, the response
// carries a spelling suggestion if one exists.
func (s *Searcher) Search(ctx context.Context, indexDir string, q *models.KeywordQuery) (*models.KeywordResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	snap, err := s.open(ctx, indexDir, q.Mode == models.ModeHybrid, q.Rerank)
	if err != nil {
		return nil, err
	}
	defer snap.close()

	candidates := max(q.Limit*2, minCandidates)
	kwResults, err := snap.kw.Search(ctx, q.Query, candidates, &keyword.SearchOptions{
		PhraseBoost:  DefaultPhraseBoost,
		FuzzyEnabled: q.Fuzzy,
	})
	if err != nil {
		return nil, err
	}

	var fused []*FusedResult
	if q.Mode == models.ModeHybrid {
		semantic, err := s.semantic(ctx, snap.index, q.Query, candidates)
		if err != nil {
			return nil, err
		}
		fused = Fuse(NormalizeKeywordScores(kwResults), semantic, DefaultKeywordWeight, DefaultSemanticWeight)
	} else {
		fused = Fuse(NormalizeKeywordScores(kwResults), nil, 1, 0)
		raw := make(map[int]float64, len(kwResults))
		for _, r := range kwResults {
			raw[r.Position] = r.Score
		}
		// Plain keyword search reports raw BM25 scores.
		for _, r := range fused {
			r.Score = raw[r.Position]
		}
	}

	hits := make([]*models.KeywordHit, 0, len(fused))
	for _, r := range fused {
		if r.Position < 0 || r.Position >= len(snap.chunks) {
			continue
		}
		hits = append(hits, &models.KeywordHit{
			Position:      r.Position,
			Score:         r.Score,
			KeywordScore:  r.KeywordScore,
			SemanticScore: r.SemanticScore,
			Metadata:      snap.chunks[r.Position].Metadata,
		})
	}
	if q.Rerank {
		hits = s.rerank(q.Query, hits, snap)
	}

	resp := &models.KeywordResponse{
		Query:   q.Query,
		Mode:    q.Mode,
		Results: hits[:min(len(hits), q.Limit)],
		Total:   len(hits),
	}
	for _, hit := range resp.Results {
		hit.Snippet = Highlight(snap.chunks[hit.Position].Text, q.Query, SnippetLength)
	}

	if len(kwResults) == 0 {
		if terms, err := snap.kw.TermCounts(); err == nil {
			if corrected, ok := keyword.NewSuggester(terms).Correct(q.Query); ok {
				resp.Suggestion = corrected
			}
		}
	}

	resp.QueryTime = time.Since(start).Milliseconds()
	s.logger.Debug("search finished",
		zap.String("mode", q.Mode), zap.Int("results", len(resp.Results)), zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// open reads everything the search needs while holding the shared lock, so a concurrent
// ingestion cannot swap artifacts between reads.
func (s *Searcher) open(ctx context.Context, indexDir string, withVectors, withManifest bool) (*snapshot, error) {
	unlock, err := s.locker.RLock(ctx, indexDir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	snap := &snapshot{}
	if withVectors {
		kb, err := s.store.Load(ctx, indexDir)
		if err != nil {
			return nil, err
		}
		if kb == nil {
			return nil, ErrNoKnowledgeBase
		}
		snap.chunks = kb.Chunks()
		snap.index = kb.Index
	} else {
		snap.chunks, err = s.store.Chunks(ctx, indexDir)
		if err != nil {
			return nil, fmt.Errorf("read chunks: %w", err)
		}
		if snap.chunks == nil && !storage.Exists(indexDir) {
			return nil, ErrNoKnowledgeBase
		}
	}
	if len(snap.chunks) == 0 {
		snap.close()
		return nil, ErrNoChunks
	}

	if withManifest {
		entries, err := s.store.Manifest(ctx, indexDir)
		if err != nil {
			snap.close()
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		snap.modTimes = make(map[string]time.Time, len(entries))
		for _, e := range entries {
			snap.modTimes[e.Source] = e.ModTime
		}
	}

	snap.kw, err = keyword.Open(filepath.Join(indexDir, storage.KeywordDir))
	if err != nil {
		snap.close()
		if errors.Is(err, keyword.ErrNotBuilt) {
			return nil, fmt.Errorf("%w: re-run ingestion to build it", err)
		}
		return nil, err
	}
	return snap, nil
}

// rerank reorders hits with the ranker. Hits mentioning a negated query term are dropped.
func (s *Searcher) rerank(query string, hits []*models.KeywordHit, snap *snapshot) []*models.KeywordHit {
	candidates := make([]*ranking.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = &ranking.Candidate{
			ID:        i,
			Text:      snap.chunks[h.Position].Text,
			Source:    h.Metadata.Source,
			ChunkID:   h.Metadata.ChunkID,
			ModTime:   snap.modTimes[h.Metadata.Source],
			BaseScore: h.Score,
		}
	}
	ranked := s.ranker.Rerank(query, candidates)
	out := make([]*models.KeywordHit, 0, len(ranked))
	for _, r := range ranked {
		h := hits[r.Candidate.ID]
		h.Score = r.Score
		h.RankScore = r.RankScore
		out = append(out, h)
	}
	return out
}

func (s *Searcher) semantic(ctx context.Context, idx vector.VectorIndex, query string, k int) (map[int]float64, error) {
	if s.embedder == nil {
		return nil, errors.New("hybrid search needs an embedder")
	}
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := idx.Search(ctx, qv, min(k, idx.Size()))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return SemanticScores(results), nil
}
