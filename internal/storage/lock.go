package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

// Locker serializes access to index directories: writers are exclusive, readers share. Locks
// are held both in-process and on a lock file so separate processes cooperate.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*dirLock
}

type dirLock struct {
	rw      sync.RWMutex
	mu      sync.Mutex
	readers int
	file    *flock.Flock
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*dirLock)}
}

func (l *Locker) get(dir string) *dirLock {
	key := filepath.Clean(dir)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	dl, ok := l.locks[key]
	if !ok {
		dl = &dirLock{file: flock.New(filepath.Join(key, LockFile))}
		l.locks[key] = dl
	}
	return dl
}

// Lock takes the exclusive lock on dir, creating dir if needed. Call the returned function to
// release it.
func (l *Locker) Lock(ctx context.Context, dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	dl := l.get(dir)
	dl.rw.Lock()
	ok, err := dl.file.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		dl.rw.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	return func() {
		_ = dl.file.Unlock()
		dl.rw.Unlock()
	}, nil
}

// RLock takes a shared lock on dir. A directory that does not exist is only locked in-process.
func (l *Locker) RLock(ctx context.Context, dir string) (func(), error) {
	dl := l.get(dir)
	dl.rw.RLock()

	_, statErr := os.Stat(dir)
	useFile := statErr == nil

	if useFile {
		dl.mu.Lock()
		if dl.readers == 0 {
			ok, err := dl.file.TryRLockContext(ctx, lockRetryDelay)
			if err != nil || !ok {
				dl.mu.Unlock()
				dl.rw.RUnlock()
				if err == nil {
					err = ctx.Err()
				}
				return nil, fmt.Errorf("read lock %s: %w", dir, err)
			}
		}
		dl.readers++
		dl.mu.Unlock()
	}

	return func() {
		if useFile {
			dl.mu.Lock()
			dl.readers--
			if dl.readers == 0 {
				_ = dl.file.Unlock()
			}
			dl.mu.Unlock()
		}
		dl.rw.RUnlock()
	}, nil
}
