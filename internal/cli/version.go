package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/policy"
	"github.com/ppiankov/metadag/internal/server"
	"github.com/ppiankov/metadag/internal/store"
)

const version = "0.3.0"

type versionInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	ConfigSchema string   `json:"config_schema"`
	Drivers      []string `json:"storage_drivers"`
	GRPCService  string   `json:"grpc_service"`
	GoVersion    string   `json:"go_version"`
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build, config schema range and storage drivers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), versionInfo{
			Name:         "metadag",
			Version:      version,
			ConfigSchema: policy.SupportedVersions,
			Drivers:      []string{store.DriverJSON, store.DriverSQLite},
			GRPCService:  server.ServiceName,
			GoVersion:    runtime.Version(),
		})
	},
}
