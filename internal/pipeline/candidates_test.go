package pipeline

import (
	"testing"

	"github.com/ppiankov/metadag/internal/model"
)

func TestDeriveCandidates(t *testing.T) {
	weights := map[model.RiskLevel]float64{model.RiskLow: 0.05, model.RiskHigh: 0.75}

	tests := []struct {
		name     string
		event    model.Event
		wantVeto bool
		wantW    *float64
	}{
		{
			name: "low risk",
			event: model.Event{ID: "abc", Context: &model.EventContext{
				RiskLevel: model.RiskLow, PolicyClusters: []string{},
			}},
			wantW: ptr(0.05),
		},
		{
			name: "risk control rule vetoes",
			event: model.Event{ID: "def", Context: &model.EventContext{
				RiskLevel: model.RiskHigh, PolicyClusters: []string{"PEC-1", "PEC-3"},
			}},
			wantVeto: true,
			wantW:    ptr(0.75),
		},
		{
			name: "unweighted level",
			event: model.Event{ID: "ghi", Context: &model.EventContext{
				RiskLevel: model.RiskMedium, PolicyClusters: []string{"PEC-6"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveCandidates(tt.event, "SEED-CORE", "PEC-3", weights)
			if len(got) != 1 {
				t.Fatalf("expected 1 candidate, got %d", len(got))
			}
			c := got[0]
			if c.ID != tt.event.ID || c.Source != "SEED-CORE" {
				t.Errorf("unexpected candidate %+v", c)
			}
			if c.VetoFlag != tt.wantVeto {
				t.Errorf("veto = %v, want %v", c.VetoFlag, tt.wantVeto)
			}
			switch {
			case tt.wantW == nil && c.Weight != nil:
				t.Errorf("expected no weight, got %v", *c.Weight)
			case tt.wantW != nil && (c.Weight == nil || *c.Weight != *tt.wantW):
				t.Errorf("weight = %v, want %v", c.Weight, *tt.wantW)
			}
		})
	}
}

func TestDeriveCandidatesNoContext(t *testing.T) {
	if got := DeriveCandidates(model.Event{ID: "x"}, "SEED-CORE", "PEC-3", nil); got != nil {
		t.Errorf("expected no candidates, got %+v", got)
	}
}

func ptr(f float64) *float64 { return &f }
