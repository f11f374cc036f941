package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/metadag/internal/model"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	label := result.Source
	if label == "" {
		label = "all sources"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Audit: %s | No entries found.\n", label)
	}

	var b strings.Builder

	first := result.Summary.FirstTimestamp.Format("2006-01-02 15:04:05")
	last := result.Summary.LastTimestamp.Format("15:04:05")
	b.WriteString(fmt.Sprintf("Audit: %s | %s–%s UTC\n", label, first, last))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		b.WriteString(fmt.Sprintf("%-10s %-16s %-12s %-10s %-24s %s\n",
			e.Metadata.Timestamp.Format("15:04:05"),
			e.Metadata.EventID,
			truncate(e.Policy, 12),
			truncate(e.Risk, 10),
			truncate(e.Action, 24),
			e.Metadata.Source))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.AcceptedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d accepted", s.AcceptedCount))
	}
	if s.VetoCount > 0 {
		parts = append(parts, fmt.Sprintf("%d vetoed", s.VetoCount))
	}
	if s.RejectedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected", s.RejectedCount))
	}
	if s.FailureCount > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.FailureCount))
	}
	if s.ResetCount > 0 {
		parts = append(parts, fmt.Sprintf("%d reset", s.ResetCount))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d entries", s.Total))
	}

	sources := make([]string, 0, len(s.BySource))
	for src := range s.BySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for i, src := range sources {
		sources[i] = fmt.Sprintf("%s=%d", src, s.BySource[src])
	}

	return fmt.Sprintf("Summary: %s | Sources: %s\n",
		strings.Join(parts, ", "), strings.Join(sources, " "))
}

// FormatEntry renders one entry on a single line.
func FormatEntry(e model.AuditEntry) string {
	return fmt.Sprintf("%s  %s  %s / %s / %s  (%s)",
		e.Metadata.Timestamp.Format(time.RFC3339), e.Metadata.EventID,
		e.Policy, e.Risk, e.Action, e.Metadata.Source)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
