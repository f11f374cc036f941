package drift

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	AnomalyThreshold  float64
	SnapshotThreshold float64
	// SnapshotDir receives one file per entry at or above SnapshotThreshold.
	// Empty disables snapshots.
	SnapshotDir string
}

// Monitor scores decisions and appends them to the drift log.
type Monitor struct {
	doc  store.Document[model.DriftEntry]
	lock store.Locker
	cfg  MonitorConfig
	now  func() time.Time
}

// NewMonitor returns a Monitor writing to doc under lock. A nil lock
// serializes appends inside this process only.
func NewMonitor(doc store.Document[model.DriftEntry], lock store.Locker, cfg MonitorConfig) *Monitor {
	if lock == nil {
		lock = store.NewMutexLock()
	}
	return &Monitor{doc: doc, lock: lock, cfg: cfg, now: time.Now}
}

// Threshold returns the anomaly threshold.
func (m *Monitor) Threshold() float64 {
	return m.cfg.AnomalyThreshold
}

// Record scores one decision, stamps it with the observation time and
// appends it. The entry is returned even when persisting fails.
func (m *Monitor) Record(ctx context.Context, event model.Event, verdict model.Verdict, cl model.Classification) (model.DriftEntry, error) {
	entry := Score(event, verdict, cl, m.cfg.AnomalyThreshold)
	entry.Timestamp = m.now().UTC()

	unlock, err := m.lock.Lock(ctx)
	if err != nil {
		return entry, fmt.Errorf("drift: record: %w", err)
	}
	defer unlock()

	if err := store.Append(ctx, m.doc, entry); err != nil {
		return entry, fmt.Errorf("drift: record: %w", err)
	}
	if m.cfg.SnapshotDir != "" && entry.Score >= m.cfg.SnapshotThreshold {
		if err := m.snapshot(ctx, entry); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

func (m *Monitor) snapshot(ctx context.Context, entry model.DriftEntry) error {
	name := fmt.Sprintf("drift_%d_%s.json", entry.Timestamp.UnixNano(), entry.EventID)
	doc := store.NewJSONFile[model.DriftEntry](filepath.Join(m.cfg.SnapshotDir, name))
	if err := doc.Replace(ctx, []model.DriftEntry{entry}); err != nil {
		return fmt.Errorf("drift: snapshot: %w", err)
	}
	return nil
}

// Entries returns the whole drift log.
func (m *Monitor) Entries(ctx context.Context) ([]model.DriftEntry, error) {
	entries, err := m.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("drift: load: %w", err)
	}
	return entries, nil
}

// Tail returns the last n entries. n <= 0 returns all of them.
func (m *Monitor) Tail(ctx context.Context, n int) ([]model.DriftEntry, error) {
	entries, err := m.Entries(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
