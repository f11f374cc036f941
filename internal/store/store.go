// Package store holds the whole-document repositories behind the ledger,
// veto index, audit log, drift log and translation log. Every store is
// loaded in full and rewritten in full; writers replace atomically so
// readers only ever see the last committed document, and hold the state
// directory lock so no append is lost between processes.
package store

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when a persisted document exists but cannot be parsed.
// Callers must surface it to the operator; it is never treated as an empty store.
var ErrCorrupt = errors.New("store: corrupt document")

// Document is an ordered collection persisted as a single unit.
type Document[T any] interface {
	// Load returns every item in the document. A document that was never
	// written is empty, not an error.
	Load(ctx context.Context) ([]T, error)
	// Replace atomically swaps the whole document for items.
	Replace(ctx context.Context, items []T) error
}

// Append loads the document, appends items and replaces it.
// It does not serialize concurrent writers; callers hold a Locker.
func Append[T any](ctx context.Context, d Document[T], items ...T) error {
	current, err := d.Load(ctx)
	if err != nil {
		return err
	}
	next := make([]T, 0, len(current)+len(items))
	next = append(next, current...)
	next = append(next, items...)
	return d.Replace(ctx, next)
}
