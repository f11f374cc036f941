package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LockFile is the lock file inside the state directory.
const LockFile = ".lock"

const lockRetry = 10 * time.Millisecond

// Locker serializes the load, modify and replace cycles of every writer
// sharing one state directory. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// MutexLock serializes writers inside one process.
type MutexLock struct {
	mu sync.Mutex
}

// NewMutexLock returns a process-local Locker.
func NewMutexLock() *MutexLock {
	return &MutexLock{}
}

func (l *MutexLock) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	return l.mu.Unlock, nil
}

// FileLock is an exclusive advisory lock on a file, held across processes.
// Each Lock opens the file anew, so two FileLocks on one path exclude each
// other even inside a single process.
type FileLock struct {
	path string
	mu   sync.Mutex
}

// NewFileLock returns a lock on path. The file is created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// Lock blocks until the lock is held or ctx is done.
func (l *FileLock) Lock(ctx context.Context) (func(), error) {
	l.mu.Lock()
	f, err := l.acquire(ctx)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	return func() {
		_ = unlockFile(f)
		_ = f.Close()
		l.mu.Unlock()
	}, nil
}

func (l *FileLock) acquire(ctx context.Context) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return nil, fmt.Errorf("store: create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("store: open lock: %w", err)
	}
	ticker := time.NewTicker(lockRetry)
	defer ticker.Stop()
	for {
		ok, err := tryLockFile(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("store: lock %s: %w", l.path, err)
		}
		if ok {
			return f, nil
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, fmt.Errorf("store: lock %s: %w", l.path, ctx.Err())
		case <-ticker.C:
		}
	}
}
