package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/alert"
	"github.com/ppiankov/metadag/internal/metrics"
	"github.com/ppiankov/metadag/internal/pipeline"
	"github.com/ppiankov/metadag/internal/policy"
	"github.com/ppiankov/metadag/internal/store"
)

// exConfig is EX_CONFIG from sysexits.h.
const exConfig = 78

var (
	configPath  string
	stateDir    string
	storeDriver string
	logFormat   string
	logLevel    string
	runTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "metadag",
	Short: "Governance pipeline with an append-only decision ledger",
	Long: "Translates free text into structured events, arbitrates candidate interpretations,\n" +
		"classifies each decision and records it in a hash-chained ledger with an audit trail.",
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to governance YAML (default ~/.metadag/governance.yaml)")
	pf.StringVar(&stateDir, "state-dir", "", "Override the state directory from the config")
	pf.StringVar(&storeDriver, "store", "", "Override the storage driver (json|sqlite)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text|json)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	pf.DurationVar(&runTimeout, "timeout", 0, "Deadline for one pipeline run (0 = none)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, policy.ErrInvalidConfig) {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(exConfig)
		}
		os.Exit(1)
	}
}

// newLogger builds the slog logger selected by --log-format and --log-level.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (text|json)", format)
	}
}

// loadPolicy reads the governance config and applies flag overrides.
func loadPolicy() (*policy.PolicyConfig, error) {
	cfg, err := policy.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if stateDir != "" {
		cfg.Storage.StateDir = stateDir
	}
	if storeDriver != "" {
		cfg.Storage.Driver = storeDriver
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// app is the assembled pipeline for one command invocation.
type app struct {
	cfg      *policy.PolicyConfig
	stores   *store.Stores
	engine   *pipeline.Engine
	logger   *slog.Logger
	registry *prometheus.Registry
	alerts   *alert.Dispatcher
}

// Close waits for in-flight alert deliveries and releases the stores.
func (a *app) Close() error {
	a.alerts.Wait()
	return a.stores.Close()
}

// openApp loads the config, opens the state stores and builds the engine.
// Logs go to stderr so command output stays parseable.
func openApp(cmd *cobra.Command) (*app, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), logFormat, logLevel)
	if err != nil {
		return nil, err
	}
	cfg, err := loadPolicy()
	if err != nil {
		return nil, err
	}
	stores, err := store.Open(cfg.StoreSettings())
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	alerts := alert.NewDispatcher(cfg.Alerts, logger)
	engine, err := pipeline.FromPolicy(cfg, stores, pipeline.Options{
		Timeout: runTimeout,
		Metrics: metrics.New(reg),
		Logger:  logger,
		Alerts:  alerts,
	})
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	return &app{cfg: cfg, stores: stores, engine: engine, logger: logger, registry: reg, alerts: alerts}, nil
}
