package translate

import (
	"context"
	"fmt"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
)

// Archive is the translation log: every event the translator produced,
// in order. Failed translations are not archived.
type Archive struct {
	doc  store.Document[model.Event]
	lock store.Locker
}

// NewArchive returns an Archive backed by doc. A nil lock serializes
// appends inside this process only.
func NewArchive(doc store.Document[model.Event], lock store.Locker) *Archive {
	if lock == nil {
		lock = store.NewMutexLock()
	}
	return &Archive{doc: doc, lock: lock}
}

// Record appends event.
func (a *Archive) Record(ctx context.Context, event model.Event) error {
	unlock, err := a.lock.Lock(ctx)
	if err != nil {
		return fmt.Errorf("translate: archive: %w", err)
	}
	defer unlock()

	if err := store.Append(ctx, a.doc, event); err != nil {
		return fmt.Errorf("translate: archive: %w", err)
	}
	return nil
}

// Tail returns the last n archived events. n <= 0 returns all of them.
func (a *Archive) Tail(ctx context.Context, n int) ([]model.Event, error) {
	events, err := a.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("translate: archive: %w", err)
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}
