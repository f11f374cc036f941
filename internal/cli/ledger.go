package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ledgerVerifyFormat string

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd, ledgerReindexCmd)
	ledgerVerifyCmd.Flags().StringVarP(&ledgerVerifyFormat, "format", "f", "text", "Output format (text|json)")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Decision ledger operations",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify node linkage, node ids, chain hashes and the veto index",
	Long:  "Walks the ledger from the genesis node. Exits 0 if the chain is intact, 1 otherwise.",
	Args:  cobra.NoArgs,
	RunE:  runLedgerVerify,
}

var ledgerReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Add hard-veto nodes missing from the veto index",
	Args:  cobra.NoArgs,
	RunE:  runLedgerReindex,
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	if err := checkFormat(ledgerVerifyFormat); err != nil {
		return err
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine.Ledger().Verify(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if ledgerVerifyFormat == "json" {
		if err := printJSON(w, result); err != nil {
			return err
		}
		return result.Err()
	}
	if err := result.Err(); err != nil {
		return err
	}
	fmt.Fprintf(w, "OK: %d nodes verified, %d vetoes indexed\n", result.Nodes, result.Vetoes)
	if len(result.Unindexed) > 0 {
		fmt.Fprintf(w, "WARNING: %d hard vetoes missing from the index (run: metadag ledger reindex)\n", len(result.Unindexed))
	}
	return nil
}

func runLedgerReindex(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	added, err := a.engine.Ledger().ReindexVetoes(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d vetoes\n", added)
	return nil
}
