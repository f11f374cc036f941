// Package audit keeps the Policy/Risk/Action record: one entry per
// governance action, appended in order and never edited.
package audit

import (
	"context"
	"fmt"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
)

// Log is the append-only audit record. Appends hold lock; reads see the
// last committed document.
type Log struct {
	doc  store.Document[model.AuditEntry]
	lock store.Locker
}

// New returns a Log backed by doc. A nil lock serializes appends inside
// this process only.
func New(doc store.Document[model.AuditEntry], lock store.Locker) *Log {
	if lock == nil {
		lock = store.NewMutexLock()
	}
	return &Log{doc: doc, lock: lock}
}

// Record appends one entry.
func (l *Log) Record(ctx context.Context, entry model.AuditEntry) error {
	unlock, err := l.lock.Lock(ctx)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	defer unlock()

	if err := store.Append(ctx, l.doc, entry); err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// Entries returns every entry in append order.
func (l *Log) Entries(ctx context.Context) ([]model.AuditEntry, error) {
	entries, err := l.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: load: %w", err)
	}
	return entries, nil
}

// Tail returns the last n entries. n <= 0 returns all of them.
func (l *Log) Tail(ctx context.Context, n int) ([]model.AuditEntry, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
