package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/policy"
)

var initForce bool

func init() {
	rootCmd.AddCommand(initConfigCmd)
	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default governance config",
	Long:  "Writes the default rule table, anchors, arbitration and drift settings\nto --config (default ~/.metadag/governance.yaml).",
	Args:  cobra.NoArgs,
	RunE:  runInitConfig,
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = policy.DefaultPath()
	}
	if path == "" {
		return fmt.Errorf("cannot determine config path: set --config")
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Fprintf(cmd.OutOrStdout(), "  exists  %s (use --force to overwrite)\n", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(policy.DefaultConfigYAML()), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  created %s\n", path)
	return nil
}
