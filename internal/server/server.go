// Package server exposes the governance pipeline over gRPC.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/ledger"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/pipeline"
)

// ArbitrateRequest is the Arbitrate request payload.
type ArbitrateRequest struct {
	Candidates []model.Candidate   `json:"candidates"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

// ArbitrateReply is the Arbitrate response payload.
type ArbitrateReply struct {
	Verdict  model.Verdict          `json:"verdict"`
	Accepted *model.Candidate       `json:"accepted,omitempty"`
	Audit    model.AuditEntry       `json:"audit"`
	Trace    []arbitrate.TraceEntry `json:"trace"`
}

// QueryRequest is the Query request payload. Times are RFC 3339.
type QueryRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	PEC    string `json:"pec,omitempty"`
	Status string `json:"status,omitempty"`
}

// NodesReply carries ledger nodes for Query and Vetoes.
type NodesReply struct {
	Nodes []model.LedgerNode `json:"nodes"`
}

// Server implements GovernanceServer over an engine.
type Server struct {
	engine     *pipeline.Engine
	logger     *slog.Logger
	grpcServer *grpc.Server
}

// New creates a gRPC server with the governance service registered.
func New(engine *pipeline.Engine, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	s := &Server{
		engine:     engine,
		logger:     logger,
		grpcServer: grpc.NewServer(opts...),
	}
	s.grpcServer.RegisterService(&ServiceDesc, s)
	return s
}

// Serve accepts connections on lis. Blocks until stopped.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop gracefully shuts down the gRPC server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Submit implements the Submit RPC.
func (s *Server) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var sub pipeline.Submission
	if err := fromStruct(in, &sub); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	out, err := s.engine.Process(ctx, sub)
	if err != nil {
		s.logger.ErrorContext(ctx, "grpc submit failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(out)
}

// Arbitrate implements the Arbitrate RPC.
func (s *Server) Arbitrate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ArbitrateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.engine.Arbitrate(ctx, arbitrate.Request{Candidates: req.Candidates, Weights: req.Weights})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(ArbitrateReply{Verdict: res.Verdict, Accepted: res.Accepted, Audit: res.Audit, Trace: res.Trace})
}

// Query implements the Query RPC.
func (s *Server) Query(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req QueryRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	q, err := ledger.ParseQuery(req.From, req.To, req.PEC, req.Status)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	nodes, err := s.engine.Ledger().Find(ctx, q)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(NodesReply{Nodes: nodes})
}

// Vetoes implements the Vetoes RPC.
func (s *Server) Vetoes(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	nodes, err := s.engine.Ledger().Vetoes(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(NodesReply{Nodes: nodes})
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes s into dst through its JSON form.
func fromStruct(s *structpb.Struct, dst any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
