package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/backend"
	"github.com/ppiankov/metadag/internal/daemon"
)

var (
	watchDir          string
	watchPoll         bool
	watchPollInterval time.Duration
	watchBackendURL   string
	watchBackendModel string
	watchBackendKey   string
)

func init() {
	rootCmd.AddCommand(watchCmd)
	f := watchCmd.Flags()
	f.StringVar(&watchDir, "dir", "", "Root holding inbox/, processed/ and failed/ (default <state-dir>/../spool)")
	f.BoolVar(&watchPoll, "poll", false, "Poll the inbox instead of using filesystem notifications")
	f.DurationVar(&watchPollInterval, "poll-interval", 5*time.Second, "Poll interval with --poll")
	f.StringVar(&watchBackendURL, "backend-url", "", "OpenAI-compatible chat completions URL; inputs become prompts")
	f.StringVar(&watchBackendModel, "backend-model", "", "Backend model name")
	f.StringVar(&watchBackendKey, "backend-key-env", "METADAG_API_KEY", "Environment variable holding the backend API key")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Govern every file dropped into the inbox",
	Long: "Watches inbox/ for .txt and .json submissions. Each file is run through the\n" +
		"pipeline and moved to processed/ with a result, or to failed/ with the error.",
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	root := watchDir
	if root == "" {
		root = filepath.Join(filepath.Dir(a.cfg.StateDir()), "spool")
	}
	cfg := daemon.Config{
		Dirs:         daemon.DirsUnder(root),
		PollMode:     watchPoll,
		PollInterval: watchPollInterval,
	}
	if watchBackendURL != "" {
		cfg.Generator = backend.NewHTTP(backend.Config{
			APIURL:  watchBackendURL,
			APIKey:  os.Getenv(watchBackendKey),
			Model:   watchBackendModel,
			Timeout: 60 * time.Second,
		})
	}

	d, err := daemon.New(cfg, a.engine, a.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "metadag watching %s\n", cfg.Dirs.Inbox)
	return d.Run(ctx)
}
