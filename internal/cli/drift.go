package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/drift"
)

var (
	driftTailLines  int
	driftTailFormat string
	baselineFormat  string
	baselineOut     string
)

func init() {
	rootCmd.AddCommand(driftCmd)
	driftCmd.AddCommand(driftTailCmd, driftBaselineCmd)
	driftTailCmd.Flags().IntVarP(&driftTailLines, "lines", "n", 10, "Number of recent entries to show")
	driftTailCmd.Flags().StringVarP(&driftTailFormat, "format", "f", "text", "Output format (text|json)")
	driftBaselineCmd.Flags().StringVarP(&baselineFormat, "format", "f", "md", "Output format (md|json)")
	driftBaselineCmd.Flags().StringVarP(&baselineOut, "output", "o", "", "Write the report to a file instead of stdout")
}

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Drift log operations",
}

var driftTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent drift scores",
	Args:  cobra.NoArgs,
	RunE:  runDriftTail,
}

var driftBaselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Summarize the drift log and suggest anomaly thresholds",
	Args:  cobra.NoArgs,
	RunE:  runDriftBaseline,
}

func runDriftTail(cmd *cobra.Command, args []string) error {
	if err := checkFormat(driftTailFormat); err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.engine.Drift().Tail(cmd.Context(), driftTailLines)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if driftTailFormat == "json" {
		return printJSON(w, entries)
	}
	for _, e := range entries {
		flag := ""
		if e.Anomaly {
			flag = "  ANOMALY"
		}
		fmt.Fprintf(w, "%s  %.4f  %-26s  %s  %q%s\n",
			e.Timestamp.Format(time.RFC3339), e.Score, e.DecisionStatus, e.Code, e.TextExcerpt, flag)
	}
	return nil
}

func runDriftBaseline(cmd *cobra.Command, args []string) error {
	if baselineFormat != "md" && baselineFormat != "json" {
		return fmt.Errorf("invalid --format %q (md|json)", baselineFormat)
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.engine.Drift().Entries(cmd.Context())
	if err != nil {
		return err
	}
	b := drift.BuildBaseline(entries, time.Now().UTC())

	w := cmd.OutOrStdout()
	if baselineOut != "" {
		f, err := os.Create(baselineOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", baselineOut, err)
		}
		defer f.Close()
		w = f
	}

	if baselineFormat == "json" {
		return printJSON(w, b)
	}
	_, err = fmt.Fprint(w, drift.FormatBaselineMarkdown(b))
	return err
}
