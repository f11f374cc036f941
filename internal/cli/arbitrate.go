package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/server"
)

var (
	arbitrateCandidates string
	arbitrateFormat     string
	arbitrateVisual     bool
)

func init() {
	rootCmd.AddCommand(arbitrateCmd)
	arbitrateCmd.Flags().StringVar(&arbitrateCandidates, "candidates", "", "JSON file with candidates and optional weights (required)")
	arbitrateCmd.Flags().StringVarP(&arbitrateFormat, "format", "f", "text", "Output format (text|json)")
	arbitrateCmd.Flags().BoolVar(&arbitrateVisual, "visual", false, "Render the per-candidate stage trace")
	_ = arbitrateCmd.MarkFlagRequired("candidates")
}

var arbitrateCmd = &cobra.Command{
	Use:   "arbitrate",
	Short: "Arbitrate a candidate set and record the audit entry",
	Long: "Runs the seed, traceability, veto and bounded-loss checks over the candidates.\n" +
		"The decision is written to the audit log; nothing is appended to the ledger.",
	RunE: runArbitrate,
}

func runArbitrate(cmd *cobra.Command, args []string) error {
	if err := checkFormat(arbitrateFormat); err != nil {
		return err
	}
	cf, err := readCandidateFile(arbitrateCandidates)
	if err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Arbitrate(cmd.Context(), arbitrate.Request{Candidates: cf.Candidates, Weights: cf.Weights})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if arbitrateFormat == "json" {
		return printJSON(w, server.ArbitrateReply{
			Verdict:  res.Verdict,
			Accepted: res.Accepted,
			Audit:    res.Audit,
			Trace:    res.Trace,
		})
	}
	if arbitrateVisual {
		fmt.Fprint(w, a.engine.Arbitrator().Visualize(cf.Candidates, cf.Weights))
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "decision: %s\n", res.Verdict.DecisionStatus)
	if res.Accepted != nil {
		fmt.Fprintf(w, "accepted: %s (score %g)\n", res.Accepted.ID, res.Verdict.Score)
	}
	fmt.Fprintf(w, "reason:   %s\n", res.Verdict.Reason)
	for _, t := range res.Trace {
		fmt.Fprintf(w, "  %s\n", t)
	}
	return nil
}
