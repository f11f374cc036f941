package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/metadag/internal/backend"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/pipeline"
	"github.com/ppiankov/metadag/internal/policy"
	"github.com/ppiankov/metadag/internal/store"
)

func testEngine(t *testing.T) *pipeline.Engine {
	t.Helper()
	cfg := policy.DefaultConfig()
	cfg.Storage.StateDir = t.TempDir()
	e, err := pipeline.FromPolicy(cfg, store.NewMemoryStores(), pipeline.Options{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("FromPolicy: %v", err)
	}
	return e
}

func testDirs(t *testing.T) DirConfig {
	t.Helper()
	dirs := DirsUnder(t.TempDir())
	if err := EnsureDirs(dirs); err != nil {
		t.Fatal(err)
	}
	return dirs
}

func writeInbox(t *testing.T, dirs DirConfig, name, content string) string {
	t.Helper()
	path := filepath.Join(dirs.Inbox, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessTextFile(t *testing.T) {
	dirs := testDirs(t)
	engine := testEngine(t)
	p := NewProcessor(engine, dirs, nil, discardLogger())

	path := writeInbox(t, dirs, "note.txt", "schedule the quarterly review")
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("input should leave the inbox")
	}
	if _, err := os.Stat(filepath.Join(dirs.Processed, "note.txt")); err != nil {
		t.Errorf("input not moved to processed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dirs.Processed, "note.txt.result.json"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var out pipeline.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Event.Source != "inbox" {
		t.Errorf("source = %q, want inbox", out.Event.Source)
	}
	if out.Node.NodeIndex != 1 {
		t.Errorf("node index = %d", out.Node.NodeIndex)
	}
}

func TestProcessJSONSubmission(t *testing.T) {
	dirs := testDirs(t)
	engine := testEngine(t)
	p := NewProcessor(engine, dirs, nil, discardLogger())

	path := writeInbox(t, dirs, "sub.json", `{"text":"vulnerability disclosed","source":"scanner"}`)
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process: %v", err)
	}

	vetoes, err := engine.Ledger().Vetoes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vetoes) != 1 || vetoes[0].Event.Source != "scanner" {
		t.Errorf("unexpected vetoes: %+v", vetoes)
	}
}

func TestProcessBadJSONGoesToFailed(t *testing.T) {
	dirs := testDirs(t)
	p := NewProcessor(testEngine(t), dirs, nil, discardLogger())

	path := writeInbox(t, dirs, "broken.json", `{"text":`)
	if err := p.Process(context.Background(), path); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := os.Stat(filepath.Join(dirs.Failed, "broken.json")); err != nil {
		t.Errorf("input not moved to failed: %v", err)
	}
	reason, err := os.ReadFile(filepath.Join(dirs.Failed, "broken.json.error"))
	if err != nil || !strings.Contains(string(reason), "decode submission") {
		t.Errorf("error file = %q, %v", reason, err)
	}
}

func TestProcessWithGenerator(t *testing.T) {
	dirs := testDirs(t)
	engine := testEngine(t)
	p := NewProcessor(engine, dirs, backend.Static{Err: errors.New("upstream 503")}, discardLogger())

	path := writeInbox(t, dirs, "prompt.txt", "draft a reply")
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process: %v", err)
	}
	nodes, err := engine.Ledger().ByStatus(context.Background(), model.StatusExternalFailure)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Errorf("expected one external failure node, got %d", len(nodes))
	}
}

func TestDaemonProcessesExistingAndNewFiles(t *testing.T) {
	root := t.TempDir()
	dirs := DirsUnder(root)
	if err := EnsureDirs(dirs); err != nil {
		t.Fatal(err)
	}
	writeInbox(t, dirs, "early.txt", "invoice payment due")

	engine := testEngine(t)
	d, err := New(Config{Dirs: dirs}, engine, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	writeInbox(t, dirs, "late.txt", "team meeting moved")
	time.Sleep(600 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	n, err := engine.Ledger().Len(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 nodes, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(root, "watch.pid")); !os.IsNotExist(err) {
		t.Error("pid file should be removed on exit")
	}
}

func TestNewRequiresDirs(t *testing.T) {
	if _, err := New(Config{}, nil, discardLogger()); err == nil {
		t.Fatal("expected error for empty dirs")
	}
}
