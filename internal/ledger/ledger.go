// Package ledger is the append-only, hash-linked record of governance
// decisions. Nodes are never edited or removed; hard vetoes are also
// indexed in a set that only grows.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
)

// GenesisHash is the chain hash preceding the first node.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

const nodeHashLen = 8

// ErrChainBroken reports a ledger whose linkage, indices or hashes do not verify.
var ErrChainBroken = errors.New("ledger: chain broken")

// Ledger appends decision nodes. Appends hold lock across the load and
// replace of both documents; queries read the last committed documents
// without taking it.
type Ledger struct {
	nodes  store.Document[model.LedgerNode]
	vetoes store.Document[string]
	lock   store.Locker
	now    func() time.Time
}

// New returns a Ledger over the node and veto-index documents. A nil lock
// serializes appends inside this process only.
func New(nodes store.Document[model.LedgerNode], vetoes store.Document[string], lock store.Locker) *Ledger {
	if lock == nil {
		lock = store.NewMutexLock()
	}
	return &Ledger{nodes: nodes, vetoes: vetoes, lock: lock, now: time.Now}
}

// Append freezes one decision as the next node and returns it. A hard
// veto is also added to the veto index.
func (l *Ledger) Append(ctx context.Context, event model.Event, verdict model.Verdict, entry model.AuditEntry) (model.LedgerNode, error) {
	unlock, err := l.lock.Lock(ctx)
	if err != nil {
		return model.LedgerNode{}, fmt.Errorf("ledger: append: %w", err)
	}
	defer unlock()

	nodes, err := l.nodes.Load(ctx)
	if err != nil {
		return model.LedgerNode{}, fmt.Errorf("ledger: append: %w", err)
	}

	created := l.now().UTC()
	prevID, prevHash, index := model.GenesisNodeID, GenesisHash, 1
	if n := len(nodes); n > 0 {
		last := nodes[n-1]
		prevID, prevHash, index = last.NodeID, last.ChainHash, last.NodeIndex+1
		// Creation times strictly increase, which keeps node ids unique.
		if !created.After(last.CreationTimestamp) {
			created = last.CreationTimestamp.Add(time.Nanosecond)
		}
	}

	id, err := NodeID(created, event, verdict, entry)
	if err != nil {
		return model.LedgerNode{}, err
	}
	node := model.LedgerNode{
		NodeID:            id,
		NodeIndex:         index,
		PreviousNodeID:    prevID,
		CreationTimestamp: created,
		Event:             event,
		Verdict:           verdict,
		AuditEntry:        entry,
	}
	if node.ChainHash, err = ChainHash(prevHash, node); err != nil {
		return model.LedgerNode{}, err
	}

	if err := l.nodes.Replace(ctx, append(nodes, node)); err != nil {
		return model.LedgerNode{}, fmt.Errorf("ledger: append: %w", err)
	}

	if verdict.DecisionStatus == model.StatusHardVeto {
		if err := l.indexVeto(ctx, node.NodeID); err != nil {
			return node, err
		}
	}
	return node, nil
}

func (l *Ledger) indexVeto(ctx context.Context, ids ...string) error {
	index, err := l.vetoes.Load(ctx)
	if err != nil {
		return fmt.Errorf("ledger: veto index: %w", err)
	}
	present := make(map[string]bool, len(index))
	for _, id := range index {
		present[id] = true
	}
	changed := false
	for _, id := range ids {
		if !present[id] {
			index = append(index, id)
			present[id] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := l.vetoes.Replace(ctx, index); err != nil {
		return fmt.Errorf("ledger: veto index: %w", err)
	}
	return nil
}

// ReindexVetoes adds every hard-veto node missing from the veto index,
// e.g. after a crash between the node write and the index write. It
// returns the number of ids added.
func (l *Ledger) ReindexVetoes(ctx context.Context) (int, error) {
	unlock, err := l.lock.Lock(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: reindex: %w", err)
	}
	defer unlock()

	nodes, err := l.nodes.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: reindex: %w", err)
	}
	index, err := l.vetoes.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger: reindex: %w", err)
	}
	present := make(map[string]bool, len(index))
	for _, id := range index {
		present[id] = true
	}
	var missing []string
	for _, n := range nodes {
		if n.Verdict.DecisionStatus == model.StatusHardVeto && !present[n.NodeID] {
			missing = append(missing, n.NodeID)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	return len(missing), l.indexVeto(ctx, missing...)
}

type nodePayload struct {
	Event      model.Event      `json:"event"`
	Verdict    model.Verdict    `json:"verdict"`
	AuditEntry model.AuditEntry `json:"audit_entry"`
}

// NodeID derives "TS<unix>_<hash8>" from the creation time and the
// canonical (JCS) form of the decision content.
func NodeID(created time.Time, event model.Event, verdict model.Verdict, entry model.AuditEntry) (string, error) {
	canonical, err := canonicalJSON(nodePayload{Event: event, Verdict: verdict, AuditEntry: entry})
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(created.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte("-"))
	h.Write(canonical)
	sum := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("TS%d_%s", created.Unix(), sum[:nodeHashLen]), nil
}

// ChainHash binds node to the chain hash of its predecessor. The node's
// own ChainHash field is excluded from the input.
func ChainHash(prevHash string, node model.LedgerNode) (string, error) {
	node.ChainHash = ""
	canonical, err := canonicalJSON(node)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte("\n"))
	h.Write(canonical)
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("ledger: canonicalize: %w", err)
	}
	return canonical, nil
}
