package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/ledger"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/pipeline"
)

// SubmitInput defines parameters for the metadag_submit tool.
type SubmitInput struct {
	Text     string `json:"text" jsonschema:"raw input text"`
	TaskType string `json:"task_type,omitempty" jsonschema:"task type, defaults to NL_REQUEST"`
}

// SubmitOutput summarizes the recorded decision.
type SubmitOutput struct {
	NodeID         string  `json:"node_id"`
	NodeIndex      int     `json:"node_index"`
	DecisionStatus string  `json:"decision_status"`
	Reason         string  `json:"reason"`
	AcceptedID     string  `json:"accepted_id,omitempty"`
	Classification string  `json:"classification"`
	DriftScore     float64 `json:"drift_score"`
	Anomaly        bool    `json:"anomaly"`
}

// CandidateInput is one candidate for metadag_arbitrate.
type CandidateInput struct {
	ID       string   `json:"id" jsonschema:"candidate id, unique within the call"`
	Source   string   `json:"source" jsonschema:"identity the candidate came from"`
	VetoFlag bool     `json:"veto_flag,omitempty" jsonschema:"true to veto the whole call"`
	Weight   *float64 `json:"weight,omitempty" jsonschema:"candidate weight, defaults to 1.0"`
}

// ArbitrateInput defines parameters for the metadag_arbitrate tool.
type ArbitrateInput struct {
	Candidates []CandidateInput `json:"candidates" jsonschema:"candidate set in input order"`
}

// ArbitrateOutput contains the verdict and trace.
type ArbitrateOutput struct {
	DecisionStatus string   `json:"decision_status"`
	AcceptedID     string   `json:"accepted_id,omitempty"`
	Score          float64  `json:"score"`
	Reason         string   `json:"reason"`
	Audit          string   `json:"audit"`
	Trace          []string `json:"trace"`
}

// QueryInput defines parameters for the metadag_query tool.
type QueryInput struct {
	From   string `json:"from,omitempty" jsonschema:"RFC 3339 lower bound, inclusive"`
	To     string `json:"to,omitempty" jsonschema:"RFC 3339 upper bound, inclusive"`
	PEC    string `json:"pec,omitempty" jsonschema:"policy cluster, e.g. PEC-3"`
	Status string `json:"status,omitempty" jsonschema:"decision status, e.g. ACCEPTED"`
}

// VetoesInput takes no parameters.
type VetoesInput struct{}

// NodeSummary is a compact view of one ledger node.
type NodeSummary struct {
	NodeID         string   `json:"node_id"`
	NodeIndex      int      `json:"node_index"`
	Created        string   `json:"created"`
	DecisionStatus string   `json:"decision_status"`
	PolicyClusters []string `json:"policy_clusters,omitempty"`
	Text           string   `json:"text"`
}

// NodesOutput lists ledger nodes.
type NodesOutput struct {
	Count int           `json:"count"`
	Nodes []NodeSummary `json:"nodes"`
}

// VerifyInput takes no parameters.
type VerifyInput struct{}

// VerifyOutput reports the ledger verification result.
type VerifyOutput struct {
	Valid      bool     `json:"valid"`
	Nodes      int      `json:"nodes"`
	Vetoes     int      `json:"vetoes"`
	Error      string   `json:"error,omitempty"`
	ErrorIndex int      `json:"error_index,omitempty"`
	Unindexed  []string `json:"unindexed_vetoes,omitempty"`
}

func (s *Server) handleSubmit(ctx context.Context, req *mcpsdk.CallToolRequest, input SubmitInput) (*mcpsdk.CallToolResult, SubmitOutput, error) {
	out, err := s.engine.Process(ctx, pipeline.Submission{
		Text:     input.Text,
		TaskType: input.TaskType,
		Source:   s.source,
	})
	if err != nil {
		return nil, SubmitOutput{}, err
	}
	result := SubmitOutput{
		NodeID:         out.Node.NodeID,
		NodeIndex:      out.Node.NodeIndex,
		DecisionStatus: string(out.Verdict.DecisionStatus),
		Reason:         out.Verdict.Reason,
		AcceptedID:     out.Verdict.AcceptedID,
		Classification: string(out.Classification.Code),
		DriftScore:     out.Drift.Score,
		Anomaly:        out.Drift.Anomaly,
	}
	return nil, result, nil
}

func (s *Server) handleArbitrate(ctx context.Context, req *mcpsdk.CallToolRequest, input ArbitrateInput) (*mcpsdk.CallToolResult, ArbitrateOutput, error) {
	candidates := make([]model.Candidate, len(input.Candidates))
	for i, c := range input.Candidates {
		candidates[i] = model.Candidate{ID: c.ID, Source: c.Source, VetoFlag: c.VetoFlag, Weight: c.Weight}
	}
	res, err := s.engine.Arbitrate(ctx, arbitrate.Request{Candidates: candidates})
	if err != nil {
		return nil, ArbitrateOutput{}, err
	}
	trace := make([]string, len(res.Trace))
	for i, t := range res.Trace {
		trace[i] = t.String()
	}
	return nil, ArbitrateOutput{
		DecisionStatus: string(res.Verdict.DecisionStatus),
		AcceptedID:     res.Verdict.AcceptedID,
		Score:          res.Verdict.Score,
		Reason:         res.Verdict.Reason,
		Audit:          res.Audit.Action,
		Trace:          trace,
	}, nil
}

func (s *Server) handleQuery(ctx context.Context, req *mcpsdk.CallToolRequest, input QueryInput) (*mcpsdk.CallToolResult, NodesOutput, error) {
	q, err := ledger.ParseQuery(input.From, input.To, input.PEC, input.Status)
	if err != nil {
		return nil, NodesOutput{}, err
	}
	nodes, err := s.engine.Ledger().Find(ctx, q)
	if err != nil {
		return nil, NodesOutput{}, err
	}
	return nil, summarize(nodes), nil
}

func (s *Server) handleVetoes(ctx context.Context, req *mcpsdk.CallToolRequest, _ VetoesInput) (*mcpsdk.CallToolResult, NodesOutput, error) {
	nodes, err := s.engine.Ledger().Vetoes(ctx)
	if err != nil {
		return nil, NodesOutput{}, err
	}
	return nil, summarize(nodes), nil
}

func (s *Server) handleVerify(ctx context.Context, req *mcpsdk.CallToolRequest, _ VerifyInput) (*mcpsdk.CallToolResult, VerifyOutput, error) {
	res, err := s.engine.Ledger().Verify(ctx)
	if err != nil {
		return nil, VerifyOutput{}, err
	}
	out := VerifyOutput{
		Valid:      res.Valid,
		Nodes:      res.Nodes,
		Vetoes:     res.Vetoes,
		Error:      res.Error,
		ErrorIndex: res.ErrorIndex,
		Unindexed:  res.Unindexed,
	}
	if !res.Valid {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func summarize(nodes []model.LedgerNode) NodesOutput {
	out := NodesOutput{Count: len(nodes), Nodes: make([]NodeSummary, 0, len(nodes))}
	for _, n := range nodes {
		ns := NodeSummary{
			NodeID:         n.NodeID,
			NodeIndex:      n.NodeIndex,
			Created:        n.CreationTimestamp.Format(time.RFC3339Nano),
			DecisionStatus: string(n.Verdict.DecisionStatus),
			Text:           n.Event.OriginalText(),
		}
		if n.Event.Context != nil {
			ns.PolicyClusters = n.Event.Context.PolicyClusters
		}
		out.Nodes = append(out.Nodes, ns)
	}
	return out
}
