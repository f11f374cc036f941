package audit

import (
	"context"
	"strings"
	"time"

	"github.com/ppiankov/metadag/internal/model"
)

// ReplayFilter holds filtering criteria for an audit replay.
type ReplayFilter struct {
	Source string    // empty = every source
	From   time.Time // zero value = no lower bound
	To     time.Time // zero value = no upper bound
}

// ReplaySummary holds counts and bounds for a replayed window.
type ReplaySummary struct {
	Total          int            `json:"total"`
	AcceptedCount  int            `json:"accepted_count"`
	VetoCount      int            `json:"veto_count"`
	RejectedCount  int            `json:"rejected_count"`
	FailureCount   int            `json:"failure_count"`
	ResetCount     int            `json:"reset_count"`
	BySource       map[string]int `json:"by_source"`
	FirstTimestamp time.Time      `json:"first_timestamp"`
	LastTimestamp  time.Time      `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and their summary.
type ReplayResult struct {
	Source  string             `json:"source,omitempty"`
	Entries []model.AuditEntry `json:"entries"`
	Summary ReplaySummary      `json:"summary"`
}

// Replay returns entries matching the filter, in log order. Bounds are inclusive.
func (l *Log) Replay(ctx context.Context, filter ReplayFilter) (*ReplayResult, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{
		Source:  filter.Source,
		Entries: []model.AuditEntry{},
		Summary: ReplaySummary{BySource: map[string]int{}},
	}
	for _, e := range entries {
		if filter.Source != "" && e.Metadata.Source != filter.Source {
			continue
		}
		ts := e.Metadata.Timestamp
		if !filter.From.IsZero() && ts.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && ts.After(filter.To) {
			continue
		}
		result.Entries = append(result.Entries, e)
		updateSummary(&result.Summary, e)
	}
	return result, nil
}

func updateSummary(s *ReplaySummary, e model.AuditEntry) {
	s.Total++
	s.BySource[e.Metadata.Source]++

	action := strings.ToLower(e.Action)
	switch {
	case strings.HasPrefix(action, "accepted"):
		s.AcceptedCount++
	case strings.HasPrefix(action, "vetoed"):
		s.VetoCount++
	case strings.HasPrefix(action, "failed"):
		s.FailureCount++
	case strings.HasPrefix(action, "rejected"):
		s.RejectedCount++
	case action == "rebuild":
		s.ResetCount++
	}

	if s.FirstTimestamp.IsZero() {
		s.FirstTimestamp = e.Metadata.Timestamp
	}
	s.LastTimestamp = e.Metadata.Timestamp
}
