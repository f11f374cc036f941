package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/metadag/internal/model"
)

// All returns every node in append order.
func (l *Ledger) All(ctx context.Context) ([]model.LedgerNode, error) {
	nodes, err := l.nodes.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	return nodes, nil
}

// Len returns the number of nodes.
func (l *Ledger) Len(ctx context.Context) (int, error) {
	nodes, err := l.All(ctx)
	return len(nodes), err
}

// VetoIndex returns the veto index in insertion order.
func (l *Ledger) VetoIndex(ctx context.Context) ([]string, error) {
	ids, err := l.vetoes.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load veto index: %w", err)
	}
	return ids, nil
}

// Markers returns the content marker of every node.
func (l *Ledger) Markers(ctx context.Context) ([]string, error) {
	nodes, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	markers := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Event.ID != "" {
			markers = append(markers, n.Event.ID)
		}
	}
	return markers, nil
}

// ByTimeRange returns nodes created within [from, to]. A zero bound is open.
func (l *Ledger) ByTimeRange(ctx context.Context, from, to time.Time) ([]model.LedgerNode, error) {
	return l.filter(ctx, func(n model.LedgerNode) bool {
		ts := n.CreationTimestamp
		if !from.IsZero() && ts.Before(from) {
			return false
		}
		if !to.IsZero() && ts.After(to) {
			return false
		}
		return true
	})
}

// ByPolicyCluster returns nodes whose event inferred the named cluster.
func (l *Ledger) ByPolicyCluster(ctx context.Context, cluster string) ([]model.LedgerNode, error) {
	return l.filter(ctx, func(n model.LedgerNode) bool {
		return n.Event.Context != nil && n.Event.Context.HasCluster(cluster)
	})
}

// ByStatus returns nodes with the given decision status.
func (l *Ledger) ByStatus(ctx context.Context, status model.DecisionStatus) ([]model.LedgerNode, error) {
	return l.filter(ctx, func(n model.LedgerNode) bool {
		return n.Verdict.DecisionStatus == status
	})
}

// Query is a conjunction of the ledger predicates. Zero fields match everything.
type Query struct {
	From    time.Time
	To      time.Time
	Cluster string
	Status  model.DecisionStatus
}

// Matches reports whether n satisfies every set predicate.
func (q Query) Matches(n model.LedgerNode) bool {
	ts := n.CreationTimestamp
	switch {
	case !q.From.IsZero() && ts.Before(q.From):
		return false
	case !q.To.IsZero() && ts.After(q.To):
		return false
	case q.Cluster != "" && (n.Event.Context == nil || !n.Event.Context.HasCluster(q.Cluster)):
		return false
	case q.Status != "" && n.Verdict.DecisionStatus != q.Status:
		return false
	}
	return true
}

// ParseQuery builds a Query from string bounds as accepted by the CLI and
// HTTP surfaces. Times are RFC 3339; empty strings leave a predicate unset.
func ParseQuery(from, to, cluster, status string) (Query, error) {
	q := Query{Cluster: cluster, Status: model.DecisionStatus(strings.ToUpper(status))}
	var err error
	if from != "" {
		if q.From, err = time.Parse(time.RFC3339, from); err != nil {
			return Query{}, fmt.Errorf("ledger: from: %w", err)
		}
	}
	if to != "" {
		if q.To, err = time.Parse(time.RFC3339, to); err != nil {
			return Query{}, fmt.Errorf("ledger: to: %w", err)
		}
	}
	return q, nil
}

// Find returns the nodes matching q, in ledger order.
func (l *Ledger) Find(ctx context.Context, q Query) ([]model.LedgerNode, error) {
	return l.filter(ctx, q.Matches)
}

// Vetoes joins the veto index against the ledger, in ledger order.
func (l *Ledger) Vetoes(ctx context.Context) ([]model.LedgerNode, error) {
	ids, err := l.VetoIndex(ctx)
	if err != nil {
		return nil, err
	}
	indexed := make(map[string]bool, len(ids))
	for _, id := range ids {
		indexed[id] = true
	}
	return l.filter(ctx, func(n model.LedgerNode) bool {
		return indexed[n.NodeID]
	})
}

func (l *Ledger) filter(ctx context.Context, keep func(model.LedgerNode) bool) ([]model.LedgerNode, error) {
	nodes, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.LedgerNode{}
	for _, n := range nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out, nil
}
