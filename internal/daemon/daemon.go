// Package daemon feeds inbox files through the governance pipeline.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/ppiankov/metadag/internal/backend"
	"github.com/ppiankov/metadag/internal/pipeline"
)

// Config holds daemon configuration.
type Config struct {
	Dirs         DirConfig
	PollMode     bool
	PollInterval time.Duration
	// Generator, when set, turns each input into model output before it
	// is governed.
	Generator backend.Generator
}

// Daemon watches the inbox directory and processes inputs.
type Daemon struct {
	cfg       Config
	processor *Processor
	logger    *slog.Logger
}

// New creates a daemon with validated configuration.
func New(cfg Config, engine *pipeline.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg.Dirs.Inbox == "" || cfg.Dirs.Processed == "" || cfg.Dirs.Failed == "" {
		return nil, fmt.Errorf("inbox, processed, and failed directories are required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	return &Daemon{
		cfg:       cfg,
		processor: NewProcessor(engine, cfg.Dirs, cfg.Generator, logger),
		logger:    logger,
	}, nil
}

// Run processes files already in the inbox, then watches for new ones.
// Blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	pidPath := filepath.Join(filepath.Dir(d.cfg.Dirs.Inbox), "watch.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	if err := ScanExisting(ctx, d.cfg.Dirs.Inbox, d.processor.Handle); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	d.logger.InfoContext(ctx, "watching inbox", "dir", d.cfg.Dirs.Inbox, "poll", d.cfg.PollMode)
	if d.cfg.PollMode {
		return NewPollWatcher(d.cfg.Dirs.Inbox, d.processor.Handle, d.cfg.PollInterval).Run(ctx)
	}
	return NewInboxWatcher(d.cfg.Dirs.Inbox, d.processor.Handle, d.logger).Run(ctx)
}

// acquirePIDLock writes the current PID to path, refusing when a live
// process already holds it. Stale files are replaced.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(string(data)); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another watcher is running (PID %d)", pid)
				}
			}
		}
		_ = os.Remove(path)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}
