package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/pipeline"
)

// Client calls a remote GovernanceService.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to target without transport security.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// Close closes a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Submit runs a submission through the remote pipeline.
func (c *Client) Submit(ctx context.Context, sub pipeline.Submission) (*pipeline.Outcome, error) {
	var out pipeline.Outcome
	if err := c.call(ctx, MethodSubmit, sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Arbitrate runs a standalone arbitration call remotely.
func (c *Client) Arbitrate(ctx context.Context, req ArbitrateRequest) (*ArbitrateReply, error) {
	var out ArbitrateReply
	if err := c.call(ctx, MethodArbitrate, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query returns the ledger nodes matching req.
func (c *Client) Query(ctx context.Context, req QueryRequest) ([]model.LedgerNode, error) {
	var out NodesReply
	if err := c.call(ctx, MethodQuery, req, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

// Vetoes returns the hard-vetoed ledger nodes.
func (c *Client) Vetoes(ctx context.Context) ([]model.LedgerNode, error) {
	var out NodesReply
	if err := c.call(ctx, MethodVetoes, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

func (c *Client) call(ctx context.Context, method string, req, reply any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return fromStruct(out, reply)
}
