package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IndexSizeBytes returns the on-disk size of the committed artifacts in dir: the vector file,
// the metadata store (with its SQLite journal files) and the keyword index. The lock file and
// uncommitted temp files are not counted. A missing dir is 0 bytes.
func IndexSizeBytes(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !countsTowardSize(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, err
	}
	return total, nil
}

func countsTowardSize(name string) bool {
	return name != LockFile && !strings.HasSuffix(name, ".tmp")
}
