package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process document. Items are deep-copied through JSON on
// every Load and Replace so callers never share state with the store.
type Memory[T any] struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemory returns an empty in-memory document.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{}
}

func (m *Memory[T]) Load(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.data) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(m.data, &items); err != nil {
		return nil, fmt.Errorf("%w: memory: %v", ErrCorrupt, err)
	}
	return items, nil
}

func (m *Memory[T]) Replace(ctx context.Context, items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: marshal memory document: %w", err)
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}
