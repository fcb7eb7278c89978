package search

import (
	"sort"

	"github.com/hyperjump/contexter/internal/keyword"
	"github.com/hyperjump/contexter/internal/vector"
)

// FusedResult holds a chunk position and its fused keyword/semantic scores.
type FusedResult struct {
	Position      int
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.Result) map[int]float64 {
	normalized := make(map[int]float64, len(results))
	maxScore := 0.0
	for _, r := range results {
		maxScore = max(maxScore, r.Score)
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.Position] = r.Score / maxScore
		} else {
			normalized[r.Position] = 0
		}
	}
	return normalized
}

// SemanticScores maps positions to inner-product scores, clamped at 0 so opposing vectors do
// not subtract from keyword evidence.
func SemanticScores(results []*vector.VectorResult) map[int]float64 {
	scores := make(map[int]float64, len(results))
	for _, r := range results {
		scores[r.Position] = max(r.Score, 0)
	}
	return scores
}

// Fuse merges keyword and semantic score maps with weights, best first.
func Fuse(keywordScores, semanticScores map[int]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	byPos := make(map[int]*FusedResult, len(keywordScores)+len(semanticScores))
	get := func(pos int) *FusedResult {
		r, ok := byPos[pos]
		if !ok {
			r = &FusedResult{Position: pos}
			byPos[pos] = r
		}
		return r
	}
	for pos, s := range keywordScores {
		get(pos).KeywordScore = s
	}
	for pos, s := range semanticScores {
		get(pos).SemanticScore = s
	}

	results := make([]*FusedResult, 0, len(byPos))
	for _, r := range byPos {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Position < results[j].Position
	})
	return results
}
