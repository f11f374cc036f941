package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	dagmcp "github.com/ppiankov/metadag/internal/mcp"
)

var mcpSource string

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpSource, "source", "mcp", "Source tag recorded on submitted events")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs metadag as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes governance tools: submit, arbitrate, query, vetoes, verify.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := dagmcp.New(a.engine, version, mcpSource, a.logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(os.Stderr, "metadag MCP server running on stdio (state: %s)\n\n", a.cfg.StateDir())
	return srv.Run(ctx)
}
