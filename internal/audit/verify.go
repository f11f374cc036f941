package audit

import (
	"context"
	"fmt"
)

// VerifyResult holds the outcome of an event id check over the whole log.
type VerifyResult struct {
	Valid      bool   `json:"valid"`
	Entries    int    `json:"entries"`
	Error      string `json:"error,omitempty"`
	ErrorIndex int    `json:"error_index,omitempty"`
}

// Verify recomputes every entry's event id and reports the first entry
// whose content no longer matches it. Entries are numbered from 1.
func (l *Log) Verify(ctx context.Context) (VerifyResult, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	for i, e := range entries {
		want := EventID(e.Policy, e.Risk, e.Action, e.Metadata.Source, e.Metadata.Timestamp)
		if e.Metadata.EventID != want {
			return VerifyResult{
				Entries:    len(entries),
				Error:      fmt.Sprintf("event id mismatch: expected %s, got %s", want, e.Metadata.EventID),
				ErrorIndex: i + 1,
			}, nil
		}
	}
	return VerifyResult{Valid: true, Entries: len(entries)}, nil
}
