package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.paths...)
	sort.Strings(out)
	return out
}

func TestInboxWatcherDetectsNewFiles(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	w := NewInboxWatcher(inbox, rec.handle, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)

	// Atomic writes: temp file then rename.
	for _, name := range []string{"a.json", "b.txt"} {
		path := filepath.Join(inbox, name)
		if err := os.WriteFile(path+".tmp", []byte("payload"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(path+".tmp", path); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)
	cancel()
	<-done

	got := rec.got()
	want := []string{filepath.Join(inbox, "a.json"), filepath.Join(inbox, "b.txt")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestInboxWatcherIgnoresOtherFiles(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	w := NewInboxWatcher(inbox, rec.handle, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for _, name := range []string{"partial.json.tmp", "data.csv"} {
		if err := os.WriteFile(filepath.Join(inbox, name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(500 * time.Millisecond)
	cancel()

	if got := rec.got(); len(got) != 0 {
		t.Errorf("expected no files, got %v", got)
	}
}

func TestInboxWatcherContextCancellation(t *testing.T) {
	w := NewInboxWatcher(t.TempDir(), func(context.Context, string) {}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}

func TestPollWatcherDoesNotDuplicate(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	w := NewPollWatcher(inbox, rec.handle, 50*time.Millisecond)

	if err := os.WriteFile(filepath.Join(inbox, "dup.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()

	if got := rec.got(); len(got) != 1 {
		t.Errorf("file should be handled exactly once, got %v", got)
	}
}

func TestScanExisting(t *testing.T) {
	inbox := t.TempDir()
	for _, name := range []string{"a.json", "b.json", "c.tmp", "d.txt", "e.csv"} {
		if err := os.WriteFile(filepath.Join(inbox, name), []byte(`{}`), 0600); err != nil {
			t.Fatal(err)
		}
	}

	rec := &recorder{}
	if err := ScanExisting(context.Background(), inbox, rec.handle); err != nil {
		t.Fatal(err)
	}
	if got := rec.got(); len(got) != 3 {
		t.Fatalf("expected 3 input files, got %v", got)
	}
}

func TestScanExistingMissingDir(t *testing.T) {
	rec := &recorder{}
	if err := ScanExisting(context.Background(), "/nonexistent/path", rec.handle); err != nil {
		t.Fatal(err)
	}
	if got := rec.got(); len(got) != 0 {
		t.Errorf("expected nothing, got %v", got)
	}
}

func TestIsInputFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"sub-001.json", true},
		{"note.txt", true},
		{"sub.json.tmp", false},
		{"note.txt.tmp", false},
		{"data.csv", false},
		{".hidden.json", true},
	}
	for _, tt := range tests {
		if got := isInputFile(tt.path); got != tt.want {
			t.Errorf("isInputFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
