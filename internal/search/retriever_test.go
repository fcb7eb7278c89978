package search

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/keyword"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/storage"
	"github.com/hyperjump/contexter/internal/vector"
)

const testDims = 64

var testTexts = []struct{ source, text string }{
	{"fruit.txt", "Apples are red fruit that grow on trees."},
	{"fruit.txt", "Bananas are yellow and grow in bunches."},
	{"space.txt", "Vectors live in a high dimensional space."},
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder down")
}

// buildKB persists the test texts into a fresh index directory.
func buildKB(t *testing.T, texts []struct{ source, text string }) string {
	t.Helper()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "index")
	emb := embedding.NewMockEmbedder(testDims)

	kb := &storage.KnowledgeBase{Manifest: map[string]models.ManifestEntry{}}
	var vecs [][]float32
	for i, tt := range texts {
		v, err := emb.Embed(ctx, tt.text)
		if err != nil {
			t.Fatal(err)
		}
		vecs = append(vecs, v)
		kb.Texts = append(kb.Texts, tt.text)
		kb.Metadata = append(kb.Metadata, models.ChunkMetadata{Source: tt.source, ChunkID: i, TotalChunks: len(texts), TextLength: len(tt.text)})
	}
	idx, err := vector.Build(ctx, "flat", testDims, vecs)
	if err != nil {
		t.Fatal(err)
	}
	kb.Index = idx
	if err := storage.NewStore("flat").Save(ctx, dir, kb); err != nil {
		t.Fatal(err)
	}
	ki, err := keyword.Rebuild(ctx, filepath.Join(dir, storage.KeywordDir), kb.Chunks())
	if err != nil {
		t.Fatal(err)
	}
	_ = ki.Close()
	return dir
}

func TestRetrieve_NoKnowledgeBase(t *testing.T) {
	r := NewRetriever(embedding.NewMockEmbedder(testDims), storage.NewStore("flat"))
	_, err := r.Retrieve(context.Background(), "anything", filepath.Join(t.TempDir(), "none"))
	if !errors.Is(err, ErrNoKnowledgeBase) {
		t.Fatalf("expected ErrNoKnowledgeBase, got %v", err)
	}
}

func TestRetrieve_NoChunks(t *testing.T) {
	dir := buildKB(t, nil)
	r := NewRetriever(embedding.NewMockEmbedder(testDims), storage.NewStore("flat"))
	_, err := r.Retrieve(context.Background(), "anything", dir)
	if !errors.Is(err, ErrNoChunks) {
		t.Fatalf("expected ErrNoChunks, got %v", err)
	}
}

func TestRetrieve_RanksMostSimilarFirst(t *testing.T) {
	dir := buildKB(t, testTexts)
	r := NewRetriever(embedding.NewMockEmbedder(testDims), storage.NewStore("flat"), WithTopK(2))
	ctx := context.Background()

	evidence, err := r.Retrieve(ctx, "Bananas are yellow and grow in bunches.", dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(evidence) != 2 {
		t.Fatalf("expected 2 results, got %d", len(evidence))
	}
	if evidence[0].Text != testTexts[1].text || evidence[0].Metadata.Source != "fruit.txt" {
		t.Errorf("top evidence: %+v", evidence[0])
	}
	if evidence[0].Score < evidence[1].Score {
		t.Error("evidence not sorted by score")
	}

	again, err := r.Retrieve(ctx, "Bananas are yellow and grow in bunches.", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(evidence, again) {
		t.Error("retrieval should be idempotent")
	}
}

func TestRetrieve_TopKCappedAtSize(t *testing.T) {
	dir := buildKB(t, testTexts)
	r := NewRetriever(embedding.NewMockEmbedder(testDims), storage.NewStore("flat"), WithTopK(50))
	evidence, err := r.Retrieve(context.Background(), "fruit", dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(evidence) != len(testTexts) {
		t.Errorf("expected %d results, got %d", len(testTexts), len(evidence))
	}
	if r.TopK() != 50 {
		t.Errorf("TopK = %d", r.TopK())
	}
	if NewRetriever(nil, nil, WithTopK(0)).TopK() != DefaultTopK {
		t.Error("non-positive top_k should keep the default")
	}
}

func TestRetrieve_EmbedFailureYieldsNoEvidence(t *testing.T) {
	dir := buildKB(t, testTexts)
	r := NewRetriever(failingEmbedder{embedding.NewMockEmbedder(testDims)}, storage.NewStore("flat"))
	evidence, err := r.Retrieve(context.Background(), "fruit", dir)
	if err != nil {
		t.Fatalf("embed failure should not be an error: %v", err)
	}
	if len(evidence) != 0 {
		t.Errorf("expected no evidence, got %d", len(evidence))
	}
}
