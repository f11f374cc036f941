package ledger

import (
	"context"
	"fmt"

	"github.com/ppiankov/metadag/internal/model"
)

// VerifyResult holds the outcome of a full ledger check.
type VerifyResult struct {
	Valid      bool     `json:"valid"`
	Nodes      int      `json:"nodes"`
	Vetoes     int      `json:"vetoes"`
	Error      string   `json:"error,omitempty"`
	ErrorIndex int      `json:"error_index,omitempty"`
	Unindexed  []string `json:"unindexed_vetoes,omitempty"`
}

// Err returns nil for a valid ledger, otherwise an error wrapping ErrChainBroken.
func (r VerifyResult) Err() error {
	if r.Valid {
		return nil
	}
	if r.ErrorIndex > 0 {
		return fmt.Errorf("%w: node %d: %s", ErrChainBroken, r.ErrorIndex, r.Error)
	}
	return fmt.Errorf("%w: %s", ErrChainBroken, r.Error)
}

// Verify checks node indices, previous-id linkage, node ids, chain hashes
// and that every veto-index entry names a hard-veto node. Hard vetoes
// missing from the index are reported in Unindexed without failing the check.
func (l *Ledger) Verify(ctx context.Context) (VerifyResult, error) {
	nodes, err := l.All(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	index, err := l.VetoIndex(ctx)
	if err != nil {
		return VerifyResult{}, err
	}

	res := VerifyResult{Nodes: len(nodes), Vetoes: len(index)}
	fail := func(i int, format string, args ...any) (VerifyResult, error) {
		res.Error = fmt.Sprintf(format, args...)
		res.ErrorIndex = i
		return res, nil
	}

	prevID, prevHash := model.GenesisNodeID, GenesisHash
	byID := make(map[string]model.LedgerNode, len(nodes))
	for i, n := range nodes {
		pos := i + 1
		if n.NodeIndex != pos {
			return fail(pos, "node_index is %d, expected %d", n.NodeIndex, pos)
		}
		if n.PreviousNodeID != prevID {
			return fail(pos, "previous_node_id is %q, expected %q", n.PreviousNodeID, prevID)
		}
		id, err := NodeID(n.CreationTimestamp, n.Event, n.Verdict, n.AuditEntry)
		if err != nil {
			return VerifyResult{}, err
		}
		if n.NodeID != id {
			return fail(pos, "node_id is %q, content hashes to %q", n.NodeID, id)
		}
		hash, err := ChainHash(prevHash, n)
		if err != nil {
			return VerifyResult{}, err
		}
		if n.ChainHash != hash {
			return fail(pos, "chain hash mismatch: expected %s, got %s", hash, n.ChainHash)
		}
		if _, dup := byID[n.NodeID]; dup {
			return fail(pos, "duplicate node_id %q", n.NodeID)
		}
		byID[n.NodeID] = n
		prevID, prevHash = n.NodeID, n.ChainHash
	}

	indexed := make(map[string]bool, len(index))
	for _, id := range index {
		n, ok := byID[id]
		if !ok {
			return fail(0, "veto index names unknown node %q", id)
		}
		if n.Verdict.DecisionStatus != model.StatusHardVeto {
			return fail(0, "veto index names node %q with status %s", id, n.Verdict.DecisionStatus)
		}
		indexed[id] = true
	}
	for _, n := range nodes {
		if n.Verdict.DecisionStatus == model.StatusHardVeto && !indexed[n.NodeID] {
			res.Unindexed = append(res.Unindexed, n.NodeID)
		}
	}

	res.Valid = true
	return res, nil
}
