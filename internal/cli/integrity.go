package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/alert"
	"github.com/ppiankov/metadag/internal/audit"
	"github.com/ppiankov/metadag/internal/integrity"
)

var integrityFormat string

func init() {
	rootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(integritySnapshotCmd, integrityVerifyCmd)
	integrityVerifyCmd.Flags().StringVarP(&integrityFormat, "format", "f", "text", "Output format (text|json)")
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Seal and check the state files",
}

var integritySnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write version.lock with digests of the current state files",
	Args:  cobra.NoArgs,
	RunE:  runIntegritySnapshot,
}

var integrityVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare the state files with version.lock",
	Long: "Recomputes the digests of the state files. On mismatch a tamper event is\n" +
		"written to tamper.jsonl, an Integrity entry is added to the audit log and\n" +
		"the command exits 1.",
	Args: cobra.NoArgs,
	RunE: runIntegrityVerify,
}

func runIntegritySnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadPolicy()
	if err != nil {
		return err
	}
	m, err := integrity.Snapshot(cfg.StateDir(), version)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sealed %d files: %s\n", len(m.Files), m.StructureHash)
	return nil
}

func runIntegrityVerify(cmd *cobra.Command, args []string) error {
	if err := checkFormat(integrityFormat); err != nil {
		return err
	}
	cfg, err := loadPolicy()
	if err != nil {
		return err
	}
	report, verr := integrity.Verify(cfg.StateDir())
	if verr != nil && !errors.Is(verr, integrity.ErrTampered) {
		return verr
	}

	w := cmd.OutOrStdout()
	if integrityFormat == "json" {
		if err := printJSON(w, report); err != nil {
			return err
		}
	} else if report.Valid {
		fmt.Fprintf(w, "OK: %s\n", report.ActualHash)
	} else {
		fmt.Fprintf(w, "TAMPERED: expected %s, got %s\n", report.ExpectedHash, report.ActualHash)
		for _, line := range []struct {
			label string
			names []string
		}{{"changed", report.Changed}, {"missing", report.Missing}, {"added", report.Added}} {
			if len(line.names) > 0 {
				fmt.Fprintf(w, "  %s: %s\n", line.label, strings.Join(line.names, ", "))
			}
		}
	}
	if verr == nil {
		return nil
	}

	a, err := openApp(cmd)
	if err != nil {
		return errors.Join(verr, err)
	}
	defer a.Close()
	names := tamperedNames(report)
	a.alerts.Dispatch(alert.Event{
		Type:      alert.TypeStateTamper,
		Timestamp: time.Now().UTC(),
		Reason:    "state files differ from manifest: " + names,
	})
	entry := audit.NewEntry("Integrity", "Tamper", "Manifest mismatch: "+names, audit.SourceEngine, time.Now())
	if err := a.engine.Audit().Record(cmd.Context(), entry); err != nil {
		return errors.Join(verr, err)
	}
	return verr
}

func tamperedNames(r integrity.Report) string {
	var names []string
	names = append(names, r.Changed...)
	names = append(names, r.Missing...)
	names = append(names, r.Added...)
	if len(names) == 0 {
		return "structure hash"
	}
	return strings.Join(names, ",")
}
