package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFile)
	first, second := NewFileLock(path), NewFileLock(path)

	unlock, err := first.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := second.Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func TestFileLockSerializesWriters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		lock := NewFileLock(filepath.Join(dir, LockFile))
		doc := NewJSONFile[record](path)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				unlock, err := lock.Lock(ctx)
				if err != nil {
					t.Errorf("lock: %v", err)
					return
				}
				defer unlock()
				if err := Append(ctx, doc, record{ID: id, Tags: []string{}}); err != nil {
					t.Errorf("append %s: %v", id, err)
				}
			}(fmt.Sprintf("w%d-%d", w, i))
		}
	}
	wg.Wait()

	got, err := NewJSONFile[record](path).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 40)
}

func TestMutexLockHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMutexLock().Lock(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
