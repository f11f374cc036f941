package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/metadag/internal/backend"
	"github.com/ppiankov/metadag/internal/pipeline"
)

// inboxSource tags submissions read from .txt files.
const inboxSource = "inbox"

// Processor turns inbox files into pipeline submissions.
type Processor struct {
	engine    *pipeline.Engine
	dirs      DirConfig
	generator backend.Generator
	logger    *slog.Logger
}

// NewProcessor returns a Processor. generator may be nil.
func NewProcessor(engine *pipeline.Engine, dirs DirConfig, generator backend.Generator, logger *slog.Logger) *Processor {
	return &Processor{engine: engine, dirs: dirs, generator: generator, logger: logger}
}

// Handle processes path and logs any failure. It satisfies Handler.
func (p *Processor) Handle(ctx context.Context, path string) {
	if err := p.Process(ctx, path); err != nil {
		p.logger.ErrorContext(ctx, "inbox file failed", "file", filepath.Base(path), "error", err)
	}
}

// Process reads one file, runs it through the pipeline and moves it to
// processed/ with a .result.json beside it, or to failed/ with a .error.
func (p *Processor) Process(ctx context.Context, path string) error {
	sub, err := readSubmission(path)
	if err != nil {
		return p.fail(path, err)
	}
	sub = pipeline.Generated(ctx, p.generator, sub)

	out, err := p.engine.Process(ctx, sub)
	if err != nil {
		return p.fail(path, err)
	}

	name := filepath.Base(path)
	result, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return p.fail(path, err)
	}
	if err := os.WriteFile(filepath.Join(p.dirs.Processed, name+".result.json"), result, 0600); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := moveFile(path, filepath.Join(p.dirs.Processed, name)); err != nil {
		return fmt.Errorf("move to processed: %w", err)
	}
	p.logger.InfoContext(ctx, "inbox file recorded",
		"file", name,
		"node_id", out.Node.NodeID,
		"status", out.Verdict.DecisionStatus,
	)
	return nil
}

func (p *Processor) fail(path string, cause error) error {
	name := filepath.Base(path)
	_ = os.WriteFile(filepath.Join(p.dirs.Failed, name+".error"), []byte(cause.Error()+"\n"), 0600)
	if err := moveFile(path, filepath.Join(p.dirs.Failed, name)); err != nil {
		return fmt.Errorf("%v (move to failed: %w)", cause, err)
	}
	return cause
}

// readSubmission decodes a .json submission or wraps .txt content as text.
func readSubmission(path string) (pipeline.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Submission{}, fmt.Errorf("read: %w", err)
	}
	if strings.HasSuffix(path, ".txt") {
		return pipeline.Submission{Text: string(data), Source: inboxSource}, nil
	}
	var sub pipeline.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return pipeline.Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	if sub.Source == "" {
		sub.Source = inboxSource
	}
	return sub, nil
}
