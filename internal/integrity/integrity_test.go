package integrity

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/metadag/internal/store"
)

func writeState(t *testing.T, dir string) {
	t.Helper()
	for name, content := range map[string]string{
		store.LedgerFile:    `[]`,
		store.VetoIndexFile: `[]`,
		store.AuditLogFile:  `[{"policy":"Seed Init"}]`,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSnapshotThenVerifyPasses(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir)

	m, err := Snapshot(dir, "v1.0.0")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(m.Files) != 3 {
		t.Errorf("expected 3 tracked files, got %d", len(m.Files))
	}
	if len(m.StructureHash) != 64 {
		t.Errorf("structure hash length = %d", len(m.StructureHash))
	}

	r, err := Verify(dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !r.Valid {
		t.Errorf("expected valid report, got %+v", r)
	}
	if _, err := os.Stat(filepath.Join(dir, TamperLogFile)); !os.IsNotExist(err) {
		t.Error("no tamper log expected for a clean state")
	}
}

func TestVerifyDetectsChanges(t *testing.T) {
	dir := t.TempDir()
	writeState(t, dir)
	if _, err := Snapshot(dir, "v1.0.0"); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, store.LedgerFile), []byte(`[{"node_id":"forged"}]`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, store.VetoIndexFile)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, store.DriftLogFile), []byte(`[]`), 0600); err != nil {
		t.Fatal(err)
	}

	r, err := Verify(dir)
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered, got %v", err)
	}
	if r.Valid {
		t.Fatal("report should be invalid")
	}
	if len(r.Changed) != 1 || r.Changed[0] != store.LedgerFile {
		t.Errorf("changed = %v", r.Changed)
	}
	if len(r.Missing) != 1 || r.Missing[0] != store.VetoIndexFile {
		t.Errorf("missing = %v", r.Missing)
	}
	if len(r.Added) != 1 || r.Added[0] != store.DriftLogFile {
		t.Errorf("added = %v", r.Added)
	}

	data, err := os.ReadFile(filepath.Join(dir, TamperLogFile))
	if err != nil {
		t.Fatalf("expected tamper log: %v", err)
	}
	var event TamperEvent
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &event); err != nil {
		t.Fatalf("parse tamper event: %v", err)
	}
	if event.Type != "state_tamper" || event.ExpectedHash == event.ActualHash {
		t.Errorf("unexpected tamper event: %+v", event)
	}

	info, err := os.Stat(filepath.Join(dir, TamperLogFile))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("tamper log mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestVerifyWithoutManifest(t *testing.T) {
	if _, err := Verify(t.TempDir()); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestStructureHashOrderIndependent(t *testing.T) {
	a := structureHash(map[string]string{"x": "1", "y": "2"})
	b := structureHash(map[string]string{"y": "2", "x": "1"})
	if a != b {
		t.Error("structure hash must not depend on map order")
	}
	if a == structureHash(map[string]string{"x": "2", "y": "1"}) {
		t.Error("structure hash must bind names to digests")
	}
}

func TestHashFileNonExistent(t *testing.T) {
	if _, err := hashFile("/nonexistent/file"); err == nil {
		t.Fatal("expected error")
	}
}
