package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
)

var base = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func newTestLog(t *testing.T) (*Log, store.Document[model.AuditEntry]) {
	t.Helper()
	doc := store.NewJSONFile[model.AuditEntry](filepath.Join(t.TempDir(), "pra_log.json"))
	return New(doc, nil), doc
}

func TestRecordAppendsInOrder(t *testing.T) {
	l, _ := newTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := NewEntry("Arbitration", "Conflict", fmt.Sprintf("Accepted E%d", i), SourceArbitrator, base.Add(time.Duration(i)*time.Minute))
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	entries, err := l.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	for i, e := range entries {
		want := fmt.Sprintf("Accepted E%d", i)
		if e.Action != want {
			t.Errorf("entry %d: expected action %q, got %q", i, want, e.Action)
		}
	}
}

func TestNewEntryEventIDIsDeterministic(t *testing.T) {
	a := NewEntry("Arbitration", "Conflict", "Accepted X", SourceArbitrator, base)
	b := NewEntry("Arbitration", "Conflict", "Accepted X", SourceArbitrator, base)
	if a.Metadata.EventID != b.Metadata.EventID {
		t.Errorf("expected equal event ids, got %s and %s", a.Metadata.EventID, b.Metadata.EventID)
	}
	if len(a.Metadata.EventID) != 16 {
		t.Errorf("expected 16-char event id, got %q", a.Metadata.EventID)
	}

	c := NewEntry("Arbitration", "Conflict", "Accepted X", SourceArbitrator, base.Add(time.Nanosecond))
	if c.Metadata.EventID == a.Metadata.EventID {
		t.Error("expected event id to change with timestamp")
	}
	d := NewEntry("Arbitration", "Conflict", "Accepted Y", SourceArbitrator, base)
	if d.Metadata.EventID == a.Metadata.EventID {
		t.Error("expected event id to change with action")
	}
	if a.Metadata.Signature != nil {
		t.Error("expected nil signature")
	}
}

func TestSeedRebuildEntry(t *testing.T) {
	e := SeedRebuild(base)
	if e.Policy != "Seed Init" || e.Risk != "Reset" || e.Action != "Rebuild" {
		t.Errorf("unexpected seed entry: %+v", e)
	}
	if e.Metadata.Source != SourceEngine {
		t.Errorf("expected source %q, got %q", SourceEngine, e.Metadata.Source)
	}
}

func TestPipelineEntries(t *testing.T) {
	tests := []struct {
		entry                model.AuditEntry
		policy, risk, action string
		source               string
	}{
		{Translated("abc123", base), "Context Translation", "Semantic Pre-Filter", "Translated abc123", SourceTranslator},
		{ParseFailure(base), "Translation", "FatalError", "Parsing Failed", SourceTranslator},
		{Abandoned("0123456789abcdef", base), "Pipeline", "Timeout", "Abandoned 0123456789abcdef", SourceEngine},
	}
	for _, tt := range tests {
		e := tt.entry
		if e.Policy != tt.policy || e.Risk != tt.risk || e.Action != tt.action {
			t.Errorf("unexpected entry: %+v", e)
		}
		if e.Metadata.Source != tt.source {
			t.Errorf("%s: source = %q, want %q", e.Action, e.Metadata.Source, tt.source)
		}
	}
}

func TestConcurrentRecordsAreNotLost(t *testing.T) {
	l, _ := newTestLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := NewEntry("Arbitration", "Conflict", fmt.Sprintf("Accepted C%d", i), SourceArbitrator, base)
			if err := l.Record(ctx, e); err != nil {
				t.Errorf("record %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := l.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Fatalf("expected 20 entries after concurrent writes, got %d", len(entries))
	}
}

func TestTail(t *testing.T) {
	l, _ := newTestLog(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := l.Record(ctx, NewEntry("P", "R", fmt.Sprintf("A%d", i), "s", base)); err != nil {
			t.Fatal(err)
		}
	}

	tail, err := l.Tail(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 || tail[0].Action != "A2" || tail[1].Action != "A3" {
		t.Errorf("unexpected tail: %+v", tail)
	}

	all, err := l.Tail(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 entries for n=0, got %d", len(all))
	}
}

func TestVerifyIntactLog(t *testing.T) {
	l, _ := newTestLog(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Record(ctx, NewEntry("Arbitration", "Conflict", fmt.Sprintf("Accepted E%d", i), SourceArbitrator, base)); err != nil {
			t.Fatal(err)
		}
	}

	result, err := l.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("expected valid log, got error at %d: %s", result.ErrorIndex, result.Error)
	}
	if result.Entries != 3 {
		t.Errorf("expected 3 entries, got %d", result.Entries)
	}
}

func TestVerifyDetectsEditedEntry(t *testing.T) {
	l, doc := newTestLog(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := l.Record(ctx, NewEntry("Arbitration", "Conflict", fmt.Sprintf("Accepted E%d", i), SourceArbitrator, base)); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := doc.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	entries[1].Action = "Accepted FORGED"
	if err := doc.Replace(ctx, entries); err != nil {
		t.Fatal(err)
	}

	result, err := l.Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Fatal("expected verification to fail after edit")
	}
	if result.ErrorIndex != 2 {
		t.Errorf("expected error at entry 2, got %d", result.ErrorIndex)
	}
}

func TestEmptyLogPassesVerification(t *testing.T) {
	l, _ := newTestLog(t)
	result, err := l.Verify(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.Entries != 0 {
		t.Errorf("expected valid empty log, got %+v", result)
	}
}
