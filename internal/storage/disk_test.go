package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIndexSizeBytes(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		VectorsFile:                                 "12345",
		MetadataFile:                                "abc",
		VectorsFile + ".tmp":                        "uncommitted",
		LockFile:                                    "",
		filepath.Join(KeywordDir, "store", "00.zap"): "zz",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		dir  string
		want int64
	}{
		{"committed artifacts only", dir, 10},
		{"keyword index alone", filepath.Join(dir, KeywordDir), 2},
		{"missing dir", filepath.Join(dir, "nope"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IndexSizeBytes(tt.dir)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}
