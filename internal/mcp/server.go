// Package mcp exposes the governance pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/metadag/internal/pipeline"
)

// Server wraps the MCP SDK server around an engine.
type Server struct {
	mcpServer *mcpsdk.Server
	engine    *pipeline.Engine
	logger    *slog.Logger
	source    string
}

// New creates an MCP server with every metadag tool registered. Submissions
// are tagged with source.
func New(engine *pipeline.Engine, version, source string, logger *slog.Logger) *Server {
	if source == "" {
		source = "mcp"
	}
	s := &Server{engine: engine, logger: logger, source: source}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "metadag",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "metadag_submit",
		Description: "Run text through translation, arbitration, classification and drift scoring, then append the decision to the ledger.",
	}, s.handleSubmit)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "metadag_arbitrate",
		Description: "Arbitrate a candidate set without appending to the ledger. A single veto-flagged candidate rejects the whole set.",
	}, s.handleArbitrate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "metadag_query",
		Description: "List ledger nodes filtered by time range, policy cluster and decision status.",
	}, s.handleQuery)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "metadag_vetoes",
		Description: "List every hard-vetoed ledger node.",
	}, s.handleVetoes)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "metadag_verify",
		Description: "Verify ledger linkage, indices, chain hashes and the veto index.",
	}, s.handleVerify)
}
