package arbitrate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/metadag/internal/audit"
	"github.com/ppiankov/metadag/internal/model"
)

var at = time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

func newArbitrator(t *testing.T, mode Mode, bound float64) *Arbitrator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Mode = mode
	cfg.Bound = bound
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func seedCandidate(id string, veto bool) model.Candidate {
	return model.Candidate{ID: id, Source: DefaultTrustedRoot, VetoFlag: veto}
}

func weight(w float64) *float64 { return &w }

func TestSingleTrustedCandidateAccepted(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 1.0)

	res := a.Arbitrate(Request{
		Candidates: []model.Candidate{seedCandidate("X", false)},
		Weights:    map[string]float64{"X": 0.3},
		At:         at,
	})

	assert.Equal(t, model.StatusAccepted, res.Verdict.DecisionStatus)
	require.NotNil(t, res.Accepted)
	assert.Equal(t, "X", res.Accepted.ID)
	assert.Equal(t, "X", res.Verdict.AcceptedID)
	assert.Equal(t, 0.3, res.Verdict.Score)
	assert.Equal(t, "Arbitration", res.Audit.Policy)
	assert.Equal(t, "Conflict", res.Audit.Risk)
	assert.Equal(t, "Accepted X", res.Audit.Action)
	assert.Equal(t, audit.SourceArbitrator, res.Audit.Metadata.Source)
	assert.Equal(t, at, res.Audit.Metadata.Timestamp)
}

func TestSingleVetoCandidateRejected(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 1.0)

	res := a.Arbitrate(Request{Candidates: []model.Candidate{seedCandidate("X", true)}, At: at})

	assert.Equal(t, model.StatusHardVeto, res.Verdict.DecisionStatus)
	assert.Nil(t, res.Accepted)
	assert.Empty(t, res.Verdict.AcceptedID)
	assert.Equal(t, DefaultVetoClass, res.Verdict.VetoClass)
	assert.Equal(t, "Vetoed X", res.Audit.Action)
}

func TestVetoIsGlobal(t *testing.T) {
	a := newArbitrator(t, ModeMinScore, 0)

	res := a.Arbitrate(Request{
		Candidates: []model.Candidate{
			seedCandidate("good", false),
			seedCandidate("bad", true),
			seedCandidate("better", false),
		},
		Weights: map[string]float64{"good": 100, "better": 1000},
		At:      at,
	})

	assert.Equal(t, model.StatusHardVeto, res.Verdict.DecisionStatus)
	assert.Nil(t, res.Accepted)
}

func TestVetoFromUntrustedSourceIsFilteredFirst(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 1.0)

	res := a.Arbitrate(Request{
		Candidates: []model.Candidate{
			{ID: "rogue", Source: "elsewhere", VetoFlag: true},
			seedCandidate("X", false),
		},
		At: at,
	})

	assert.Equal(t, model.StatusAccepted, res.Verdict.DecisionStatus)
	assert.Equal(t, "X", res.Accepted.ID)
}

func TestExtremumSelection(t *testing.T) {
	cands := []model.Candidate{seedCandidate("a", false), seedCandidate("b", false), seedCandidate("c", false)}
	weights := map[string]float64{"a": 0.5, "b": 0.2, "c": 0.8}

	loss := newArbitrator(t, ModeMaxLoss, 1.0).Arbitrate(Request{Candidates: cands, Weights: weights, At: at})
	assert.Equal(t, "b", loss.Accepted.ID)

	score := newArbitrator(t, ModeMinScore, 0.1).Arbitrate(Request{Candidates: cands, Weights: weights, At: at})
	assert.Equal(t, "c", score.Accepted.ID)
}

func TestTieResolvesToFirstInputOrder(t *testing.T) {
	cands := []model.Candidate{seedCandidate("first", false), seedCandidate("second", false)}
	for _, mode := range []Mode{ModeMaxLoss, ModeMinScore} {
		res := newArbitrator(t, mode, 0.5).Arbitrate(Request{
			Candidates: cands,
			Weights:    map[string]float64{"first": 0.5, "second": 0.5},
			At:         at,
		})
		require.NotNil(t, res.Accepted, "mode %s", mode)
		assert.Equal(t, "first", res.Accepted.ID, "mode %s", mode)
	}
}

func TestWeightPrecedence(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 10)

	cands := []model.Candidate{
		{ID: "override", Source: DefaultTrustedRoot, Weight: weight(0.1)},
		{ID: "own", Source: DefaultTrustedRoot, Weight: weight(0.4)},
		seedCandidate("default", false),
	}
	res := a.Arbitrate(Request{Candidates: cands, Weights: map[string]float64{"override": 5}, At: at})

	require.NotNil(t, res.Accepted)
	assert.Equal(t, "own", res.Accepted.ID)
	assert.Equal(t, 0.4, res.Verdict.Score)
}

func TestSoftRejection(t *testing.T) {
	tests := []struct {
		name  string
		cands []model.Candidate
		stage Stage
	}{
		{"no candidates", nil, StageSeed},
		{"untrusted only", []model.Candidate{{ID: "x", Source: "anon"}}, StageSeed},
		{"all over bound", []model.Candidate{seedCandidate("x", false)}, StageThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newArbitrator(t, ModeMaxLoss, 0.5).Arbitrate(Request{Candidates: tt.cands, At: at})
			assert.Equal(t, model.StatusRejected, res.Verdict.DecisionStatus)
			assert.Nil(t, res.Accepted)
			assert.Contains(t, res.Verdict.Reason, string(tt.stage))
			assert.True(t, strings.HasPrefix(res.Audit.Action, "Rejected"))
		})
	}
}

func TestTrustedAlias(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 1.0)
	res := a.Arbitrate(Request{Candidates: []model.Candidate{{ID: "x", Source: "seed"}}, At: at})
	assert.Equal(t, model.StatusAccepted, res.Verdict.DecisionStatus)
}

func TestTraceIsStageTagged(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 0.5)
	res := a.Arbitrate(Request{
		Candidates: []model.Candidate{
			{ID: "anon", Source: ""},
			seedCandidate("light", false),
			seedCandidate("heavy", false),
		},
		Weights: map[string]float64{"light": 0.2, "heavy": 0.9},
		At:      at,
	})

	var stages []string
	for _, e := range res.Trace {
		stages = append(stages, e.String())
	}
	assert.Contains(t, stages, `SEED FAIL: anon (untrusted source "")`)
	assert.Contains(t, stages, "THRESHOLD FAIL: heavy (0.9 outside max_loss 0.5)")
	assert.Contains(t, stages, "SELECT PASS: light (weight 0.2)")
}

func TestExternalFailure(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 1.0)
	res := a.ExternalFailure("backend timeout", at)

	assert.Equal(t, model.StatusExternalFailure, res.Verdict.DecisionStatus)
	assert.Equal(t, "backend timeout", res.Verdict.Reason)
	assert.Nil(t, res.Accepted)
	assert.Equal(t, "Failed: backend timeout", res.Audit.Action)
}

func TestUnparsedInput(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 1.0)
	res := a.Unparsed("translate: empty input", at)

	assert.Equal(t, model.StatusUnknown, res.Verdict.DecisionStatus)
	assert.Nil(t, res.Accepted)
	assert.Equal(t, "Translation", res.Audit.Policy)
	assert.Equal(t, "FatalError", res.Audit.Risk)
	assert.Equal(t, "Parsing Failed", res.Audit.Action)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, StageTranslation, res.Trace[0].Stage)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Mode = "median"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.TrustedRoot = ""
	assert.Error(t, bad.Validate())

	_, err := New(Config{TrustedRoot: "r", Mode: ModeMaxLoss, Bound: 1.0 / zero()})
	assert.Error(t, err)
}

func zero() float64 { return 0 }

func TestVisualize(t *testing.T) {
	a := newArbitrator(t, ModeMaxLoss, 0.5)
	out := a.Visualize([]model.Candidate{
		seedCandidate("ok", false),
		seedCandidate("blocked", true),
		{ID: "anon"},
	}, map[string]float64{"ok": 0.2})

	assert.Contains(t, out, "Candidate: ok\n → Seed ✓\n → Traceability ✓\n → Veto ✓\n → Weight: 0.2\n ✓ PASS")
	assert.Contains(t, out, "Candidate: blocked\n → Seed ✓\n → Traceability ✓\n → Veto ✗ VETO")
	assert.Contains(t, out, "Candidate: anon\n → Seed ✗\n → Traceability ✗")
}
