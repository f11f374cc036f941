package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/audit"
)

var (
	tailLines    int
	tailFormat   string
	replaySource string
	replayFrom   string
	replayTo     string
	replayFormat string
	recordSource string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditTailCmd, auditReplayCmd, auditRecordCmd, auditVerifyCmd)

	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditTailCmd.Flags().StringVarP(&tailFormat, "format", "f", "text", "Output format (text|json)")

	auditReplayCmd.Flags().StringVar(&replaySource, "source", "", "Only entries from this source (e.g. Lα, engine)")
	auditReplayCmd.Flags().StringVar(&replayFrom, "from", "", "Start time filter (RFC3339)")
	auditReplayCmd.Flags().StringVar(&replayTo, "to", "", "End time filter (RFC3339)")
	auditReplayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")

	auditRecordCmd.Flags().StringVar(&recordSource, "source", audit.SourceEngine, "Source recorded in the entry metadata")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for inspecting, replaying and verifying the policy-risk-action audit log.",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit log entries",
	Args:  cobra.NoArgs,
	RunE:  runAuditTail,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay the audit log as a decision timeline",
	Long:  "Filters the audit log by source and optional time range,\nand renders a timeline with a summary of decisions.",
	Args:  cobra.NoArgs,
	RunE:  runAuditReplay,
}

var auditRecordCmd = &cobra.Command{
	Use:   "record <policy> <risk> <action>",
	Short: "Append a manual entry to the audit log",
	Args:  cobra.ExactArgs(3),
	RunE:  runAuditRecord,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify that every audit entry still matches its event id",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	if err := checkFormat(tailFormat); err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.engine.Audit().Tail(cmd.Context(), tailLines)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if tailFormat == "json" {
		return printJSON(w, entries)
	}
	for _, e := range entries {
		fmt.Fprintln(w, audit.FormatEntry(e))
	}
	return nil
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	if err := checkFormat(replayFormat); err != nil {
		return err
	}
	filter := audit.ReplayFilter{Source: replaySource}
	if replayFrom != "" {
		from, err := time.Parse(time.RFC3339, replayFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", replayFrom, err)
		}
		filter.From = from
	}
	if replayTo != "" {
		to, err := time.Parse(time.RFC3339, replayTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", replayTo, err)
		}
		filter.To = to
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine.Audit().Replay(cmd.Context(), filter)
	if err != nil {
		return err
	}

	switch replayFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(result))
	}
	return nil
}

func runAuditRecord(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entry := audit.NewEntry(args[0], args[1], args[2], recordSource, time.Now())
	if err := a.engine.Audit().Record(cmd.Context(), entry); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), entry.Metadata.EventID)
	return nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine.Audit().Verify(cmd.Context())
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("audit log FAILED at entry %d: %s", result.ErrorIndex, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Entries)
	return nil
}
