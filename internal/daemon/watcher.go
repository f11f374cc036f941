package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceDefault = 200 * time.Millisecond
	pollDefault     = 5 * time.Second
	// The engine serializes Process calls; extra workers only overlap file I/O
	// and backend calls.
	workersDefault = 2
	queueSize      = 200
)

// Handler processes one inbox file.
type Handler func(ctx context.Context, path string)

// InboxWatcher watches a directory for new input files using fsnotify.
type InboxWatcher struct {
	inbox    string
	handler  Handler
	logger   *slog.Logger
	debounce time.Duration
	workers  int
}

// NewInboxWatcher creates a watcher for the inbox directory.
func NewInboxWatcher(inbox string, handler Handler, logger *slog.Logger) *InboxWatcher {
	return &InboxWatcher{
		inbox:    inbox,
		handler:  handler,
		logger:   logger,
		debounce: debounceDefault,
		workers:  workersDefault,
	}
}

// Run watches the inbox. Blocks until ctx is cancelled; queued files are
// drained before it returns.
func (w *InboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.inbox); err != nil {
		return err
	}

	// Paths accumulate here until the single debounce timer fires.
	var mu sync.Mutex
	ready := make(map[string]bool)
	queue := make(chan string, queueSize)

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				w.handle(ctx, path)
			}
		}()
	}

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	defer func() {
		timer.Stop()
		flush()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !isInputFile(event.Name) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func (w *InboxWatcher) handle(ctx context.Context, path string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("inbox handler panicked", "path", path, "panic", r)
		}
	}()
	w.handler(ctx, path)
}

// PollWatcher scans the inbox on a fixed interval. Used where fsnotify is
// unavailable, e.g. on network filesystems.
type PollWatcher struct {
	inbox    string
	handler  Handler
	interval time.Duration
	seen     map[string]bool
}

// NewPollWatcher creates a polling watcher. A zero interval uses five seconds.
func NewPollWatcher(inbox string, handler Handler, interval time.Duration) *PollWatcher {
	if interval == 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		inbox:    inbox,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]bool),
	}
}

// Run polls the inbox. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *PollWatcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.inbox, e.Name())
		if !isInputFile(path) || w.seen[path] {
			continue
		}
		w.seen[path] = true
		w.handler(ctx, path)
	}
}

// ScanExisting handles input files already present in the inbox, in
// directory order.
func ScanExisting(ctx context.Context, inbox string, handler Handler) error {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(inbox, e.Name())
		if isInputFile(path) {
			handler(ctx, path)
		}
	}
	return nil
}

// isInputFile reports .json and .txt files; partial .tmp writes are skipped.
func isInputFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".txt")
}
