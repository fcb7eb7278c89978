package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/vector"
)

func newTestKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	vecs := [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}
	idx, err := vector.Build(context.Background(), "flat", 2, vecs)
	if err != nil {
		t.Fatal(err)
	}
	kb := &KnowledgeBase{Index: idx, Manifest: map[string]models.ManifestEntry{}}
	for _, c := range sampleChunks() {
		kb.Texts = append(kb.Texts, c.Text)
		kb.Metadata = append(kb.Metadata, c.Metadata)
	}
	kb.Manifest["a.txt"] = models.ManifestEntry{Source: "a.txt", ContentHash: "sha256:a", Chunks: 2, ModTime: time.Now()}
	kb.Manifest["b.txt"] = models.ManifestEntry{Source: "b.txt", ContentHash: "sha256:b", Chunks: 1, ModTime: time.Now()}
	return kb
}

func TestStore_LoadAbsent(t *testing.T) {
	s := NewStore("flat")
	kb, err := s.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if kb != nil {
		t.Fatal("expected nil knowledge base")
	}
	if kb.Size() != 0 {
		t.Error("nil knowledge base should have size 0")
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := NewStore("flat")

	if err := s.Save(ctx, dir, newTestKB(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, VectorsFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary vector file should be renamed away")
	}

	kb, err := s.Load(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if kb == nil {
		t.Fatal("expected knowledge base")
	}
	defer kb.Close()

	if kb.Size() != 3 || kb.Index.Size() != 3 || kb.Dimensions() != 2 {
		t.Fatalf("size=%d index=%d dims=%d", kb.Size(), kb.Index.Size(), kb.Dimensions())
	}
	if kb.Texts[2] != "beta" || kb.Metadata[2].Source != "b.txt" {
		t.Errorf("position 2: %q %+v", kb.Texts[2], kb.Metadata[2])
	}
	if kb.Manifest["a.txt"].ContentHash != "sha256:a" {
		t.Errorf("manifest: %+v", kb.Manifest)
	}

	results, err := kb.Index.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Position != 1 {
		t.Errorf("search after load: %+v", results)
	}

	chunks, err := s.Chunks(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 || chunks[1].Text != "alpha two" {
		t.Errorf("chunks: %+v", chunks)
	}

	counts, err := s.SourceCounts(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if counts["a.txt"] != 2 {
		t.Errorf("source counts: %v", counts)
	}

	meta, ok, err := s.Meta(ctx, dir)
	if err != nil || !ok {
		t.Fatalf("Meta: ok=%v err=%v", ok, err)
	}
	if meta.VectorCount != 3 || meta.Dimensions != 2 {
		t.Errorf("meta: %+v", meta)
	}
}

func TestStore_SaveRejectsMisaligned(t *testing.T) {
	kb := newTestKB(t)
	kb.Texts = kb.Texts[:2]
	if err := NewStore("flat").Save(context.Background(), t.TempDir(), kb); err == nil {
		t.Fatal("expected misalignment error")
	}
}

func TestStore_LoadInconsistentIsAbsent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string)
	}{
		{
			name: "vector file missing",
			mutate: func(t *testing.T, dir string) {
				if err := os.Remove(filepath.Join(dir, VectorsFile)); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "vector file replaced",
			mutate: func(t *testing.T, dir string) {
				if _, err := vector.WriteFile(filepath.Join(dir, VectorsFile), 2, [][]float32{{1, 0}}); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "vector file truncated",
			mutate: func(t *testing.T, dir string) {
				if err := os.Truncate(filepath.Join(dir, VectorsFile), 10); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "metadata rewritten with fewer chunks",
			mutate: func(t *testing.T, dir string) {
				db, err := OpenSQLiteStore(filepath.Join(dir, MetadataFile))
				if err != nil {
					t.Fatal(err)
				}
				defer db.Close()
				ctx := context.Background()
				meta, _, err := db.Meta(ctx)
				if err != nil {
					t.Fatal(err)
				}
				if err := db.ReplaceAll(ctx, &Snapshot{Chunks: sampleChunks()[:1], Meta: meta}); err != nil {
					t.Fatal(err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := NewStore("flat")
			ctx := context.Background()
			if err := s.Save(ctx, dir, newTestKB(t)); err != nil {
				t.Fatal(err)
			}
			tt.mutate(t, dir)
			kb, err := s.Load(ctx, dir)
			if err != nil {
				t.Fatalf("Load should not fail: %v", err)
			}
			if kb != nil {
				t.Fatal("inconsistent knowledge base should load as absent")
			}
		})
	}
}

func TestStore_Remove(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := NewStore("flat")
	if err := s.Save(ctx, dir, newTestKB(t)); err != nil {
		t.Fatal(err)
	}
	if !Exists(dir) {
		t.Fatal("expected artifacts after save")
	}
	if err := s.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if Exists(dir) {
		t.Error("artifacts should be removed")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Error("directory itself should remain")
	}
}

func TestStore_SaveDropsKeywordIndex(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, KeywordDir)
	if err := os.MkdirAll(stale, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stale, "index_meta.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewStore("flat").Save(context.Background(), dir, newTestKB(t)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("keyword index from the previous save should be gone: %v", err)
	}
}

type failingCommitStore struct {
	MetadataStore
}

func (failingCommitStore) ReplaceAll(context.Context, *Snapshot) error {
	return errors.New("disk full")
}

func TestStore_FailedCommitKeepsPreviousKnowledgeBase(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	if err := NewStore("flat").Save(ctx, dir, newTestKB(t)); err != nil {
		t.Fatal(err)
	}

	failing := NewStore("flat", WithMetadataOpener(func(path string) (MetadataStore, error) {
		db, err := OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return failingCommitStore{db}, nil
	}))
	next := newTestKB(t)
	next.Texts = []string{"x", "y", "z"}
	if err := failing.Save(ctx, dir, next); err == nil {
		t.Fatal("expected commit error")
	}
	if _, err := os.Stat(filepath.Join(dir, VectorsFile+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary vector file should be cleaned up")
	}

	kb, err := NewStore("flat").Load(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if kb == nil {
		t.Fatal("previous knowledge base should still load")
	}
	defer kb.Close()
	if kb.Texts[0] == "x" || kb.Size() != 3 {
		t.Errorf("unexpected knowledge base after failed save: %q", kb.Texts)
	}
}
