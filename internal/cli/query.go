package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/metadag/internal/ledger"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/server"
)

var (
	queryFormat string
	queryRemote string
	queryFrom   string
	queryTo     string
)

func init() {
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(vetoesCmd)
	queryCmd.AddCommand(queryTimeCmd, queryPECCmd, queryStatusCmd)

	for _, c := range []*cobra.Command{queryCmd, vetoesCmd} {
		c.PersistentFlags().StringVarP(&queryFormat, "format", "f", "text", "Output format (text|json)")
		c.PersistentFlags().StringVar(&queryRemote, "remote", "", "Query a metadag gRPC server at host:port")
	}
	queryTimeCmd.Flags().StringVar(&queryFrom, "from", "", "Lower bound, inclusive (RFC3339)")
	queryTimeCmd.Flags().StringVar(&queryTo, "to", "", "Upper bound, inclusive (RFC3339)")
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query ledger nodes",
}

var queryTimeCmd = &cobra.Command{
	Use:   "time",
	Short: "Nodes created within a time range",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, server.QueryRequest{From: queryFrom, To: queryTo})
	},
}

var queryPECCmd = &cobra.Command{
	Use:   "pec <cluster>",
	Short: "Nodes whose event matched a policy cluster (e.g. PEC-3)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, server.QueryRequest{PEC: args[0]})
	},
}

var queryStatusCmd = &cobra.Command{
	Use:   "status <decision-status>",
	Short: "Nodes with a decision status (e.g. REJECTED_HARD_VETO)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, server.QueryRequest{Status: args[0]})
	},
}

var vetoesCmd = &cobra.Command{
	Use:   "vetoes",
	Short: "Nodes listed in the veto index",
	Args:  cobra.NoArgs,
	RunE:  runVetoes,
}

func runQuery(cmd *cobra.Command, req server.QueryRequest) error {
	if err := checkFormat(queryFormat); err != nil {
		return err
	}
	q, err := ledger.ParseQuery(req.From, req.To, req.PEC, req.Status)
	if err != nil {
		return err
	}

	var nodes []model.LedgerNode
	if queryRemote != "" {
		client, err := server.Dial(queryRemote)
		if err != nil {
			return err
		}
		defer client.Close()
		nodes, err = client.Query(cmd.Context(), req)
		if err != nil {
			return err
		}
	} else {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		nodes, err = a.engine.Ledger().Find(cmd.Context(), q)
		if err != nil {
			return err
		}
	}
	return printNodes(cmd.OutOrStdout(), nodes, queryFormat)
}

func runVetoes(cmd *cobra.Command, args []string) error {
	if err := checkFormat(queryFormat); err != nil {
		return err
	}
	var nodes []model.LedgerNode
	if queryRemote != "" {
		client, err := server.Dial(queryRemote)
		if err != nil {
			return err
		}
		defer client.Close()
		nodes, err = client.Vetoes(cmd.Context())
		if err != nil {
			return err
		}
	} else {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		nodes, err = a.engine.Ledger().Vetoes(cmd.Context())
		if err != nil {
			return err
		}
	}
	return printNodes(cmd.OutOrStdout(), nodes, queryFormat)
}
