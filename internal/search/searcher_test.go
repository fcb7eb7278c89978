package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/keyword"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/storage"
)

func newTestSearcher() *Searcher {
	return NewSearcher(embedding.NewMockEmbedder(testDims), storage.NewStore("flat"), nil, nil)
}

func TestSearcher_Keyword(t *testing.T) {
	dir := buildKB(t, testTexts)
	resp, err := newTestSearcher().Search(context.Background(), dir, &models.KeywordQuery{Query: "bananas"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Mode != models.ModeKeyword || resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("response: %+v", resp)
	}
	hit := resp.Results[0]
	if hit.Position != 1 || hit.Metadata.Source != "fruit.txt" || hit.Snippet != testTexts[1].text {
		t.Errorf("hit: %+v", hit)
	}
	if hit.Score <= 0 {
		t.Errorf("keyword score should be positive: %v", hit.Score)
	}
}

func TestSearcher_LimitAndOrder(t *testing.T) {
	dir := buildKB(t, testTexts)
	resp, err := newTestSearcher().Search(context.Background(), dir, &models.KeywordQuery{Query: "grow", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 || len(resp.Results) != 1 {
		t.Errorf("total=%d results=%d", resp.Total, len(resp.Results))
	}
}

func TestSearcher_Hybrid(t *testing.T) {
	dir := buildKB(t, testTexts)
	resp, err := newTestSearcher().Search(context.Background(), dir, &models.KeywordQuery{Query: "vectors space", Mode: models.ModeHybrid})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	top := resp.Results[0]
	if top.Position != 2 || top.KeywordScore != 1 {
		t.Errorf("top hybrid hit: %+v", top)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Score > resp.Results[i-1].Score {
			t.Fatal("hybrid results not sorted")
		}
	}
}

func TestSearcher_Suggestion(t *testing.T) {
	dir := buildKB(t, testTexts)
	resp, err := newTestSearcher().Search(context.Background(), dir, &models.KeywordQuery{Query: "banannas"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected no exact results, got %+v", resp.Results)
	}
	if resp.Suggestion != "bananas" {
		t.Errorf("suggestion = %q, want bananas", resp.Suggestion)
	}

	fuzzy, err := newTestSearcher().Search(context.Background(), dir, &models.KeywordQuery{Query: "banannas", Fuzzy: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy.Results) != 1 || fuzzy.Results[0].Position != 1 {
		t.Errorf("fuzzy results: %+v", fuzzy.Results)
	}
}

func TestSearcher_Errors(t *testing.T) {
	s := newTestSearcher()
	ctx := context.Background()

	if _, err := s.Search(ctx, t.TempDir(), &models.KeywordQuery{Query: "  "}); err == nil {
		t.Error("empty query should fail validation")
	}
	if _, err := s.Search(ctx, filepath.Join(t.TempDir(), "none"), &models.KeywordQuery{Query: "x"}); !errors.Is(err, ErrNoKnowledgeBase) {
		t.Errorf("expected ErrNoKnowledgeBase, got %v", err)
	}

	dir := buildKB(t, testTexts)
	if err := os.RemoveAll(filepath.Join(dir, storage.KeywordDir)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Search(ctx, dir, &models.KeywordQuery{Query: "fruit"}); !errors.Is(err, keyword.ErrNotBuilt) {
		t.Errorf("expected ErrNotBuilt, got %v", err)
	}
}

func TestSearcher_Rerank(t *testing.T) {
	dir := buildKB(t, testTexts)
	ctx := context.Background()

	resp, err := newTestSearcher().Search(ctx, dir, &models.KeywordQuery{Query: "grow -bananas", Rerank: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Position != 0 {
		t.Fatalf("reranked results: %+v", resp.Results)
	}
	hit := resp.Results[0]
	if hit.RankScore <= 0 || hit.Score <= 0 || hit.Score > 1 {
		t.Errorf("scores: rank=%v score=%v", hit.RankScore, hit.Score)
	}
	if hit.Snippet == "" {
		t.Error("reranked hit should carry a snippet")
	}

	plain, err := newTestSearcher().Search(ctx, dir, &models.KeywordQuery{Query: "grow"})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range plain.Results {
		if h.RankScore != 0 {
			t.Errorf("rank score set without rerank: %+v", h)
		}
	}
}
