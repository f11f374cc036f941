package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Record a seed rebuild in the audit log",
	Long:  "Appends the Seed Init / Reset / Rebuild entry. The ledger is left untouched.",
	Args:  cobra.NoArgs,
	RunE:  runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.engine.Rebuild(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seed rebuild recorded: %s\n", entry.Metadata.EventID)
	return nil
}
