package pipeline

import (
	"github.com/ppiankov/metadag/internal/model"
)

// DeriveCandidates builds the default candidate set for an event: one
// candidate sourced from the trusted root, weighted by the event's risk
// level and veto-flagged when the risk-control rule matched. An event
// without a context yields no candidates, so arbitration rejects it.
func DeriveCandidates(event model.Event, trustedRoot, riskControlRule string, weights map[model.RiskLevel]float64) []model.Candidate {
	if event.Context == nil {
		return nil
	}
	c := model.Candidate{
		ID:       event.ID,
		Source:   trustedRoot,
		VetoFlag: riskControlRule != "" && event.Context.HasCluster(riskControlRule),
	}
	if c.ID == "" {
		c.ID = "candidate-0"
	}
	if w, ok := weights[event.Context.RiskLevel]; ok {
		c.Weight = &w
	}
	return []model.Candidate{c}
}
