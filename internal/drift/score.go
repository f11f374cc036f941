// Package drift scores how anomalous a decision path looks. Scores are a
// passive signal: they are logged and never fed back into arbitration.
package drift

import (
	"math"

	"github.com/ppiankov/metadag/internal/model"
)

// Defaults.
const (
	DefaultAnomalyThreshold  = 0.6
	DefaultSnapshotThreshold = 0.8
)

const (
	emptyClusterWeight   = 0.20
	crowdedClusterWeight = 0.15
	crowdedClusterCount  = 3
	severeDecisionWeight = 0.30
	rejectionWeight      = 0.15
	unknownCodeWeight    = 0.10
	excerptLen           = 120
)

// RiskWeights is the contribution of each risk level.
var RiskWeights = map[model.RiskLevel]float64{
	model.RiskLow:      0.00,
	model.RiskMedium:   0.10,
	model.RiskHigh:     0.20,
	model.RiskCritical: 0.30,
	model.RiskUnknown:  0.15,
}

// CodeWeights is the contribution of each classification code.
var CodeWeights = map[model.ClassificationCode]float64{
	model.CodeAction:          0.00,
	model.CodeSystem:          0.05,
	model.CodeRepeat:          0.10,
	model.CodeNoise:           0.20,
	model.CodeIllFormed:       0.20,
	model.CodeFail:            0.25,
	model.CodeVetoTrace:       0.30,
	model.CodeExternalFailure: 0.30,
}

// Score computes the drift entry for one decision. It never fails: a
// missing context counts as an empty cluster set at UNKNOWN risk.
// The entry is stamped with the event timestamp.
func Score(event model.Event, verdict model.Verdict, cl model.Classification, threshold float64) model.DriftEntry {
	var clusters []string
	risk := model.RiskUnknown
	if c := event.Context; c != nil {
		clusters = c.PolicyClusters
		risk = model.ParseRiskLevel(string(c.RiskLevel))
	}
	if clusters == nil {
		clusters = []string{}
	}

	d := model.DriftDetail{
		ClusterCount:   len(clusters),
		Clusters:       clusters,
		RiskLevel:      risk,
		DecisionStatus: verdict.DecisionStatus,
		Code:           cl.Code,
	}

	if len(clusters) == 0 {
		d.ClusterWeight += emptyClusterWeight
	}
	if len(clusters) > crowdedClusterCount {
		d.ClusterWeight += crowdedClusterWeight
	}
	d.RiskWeight = RiskWeights[risk]
	d.DecisionWeight = DecisionWeight(verdict.DecisionStatus)
	d.CodeWeight = CodeWeight(cl.Code)

	score := clamp(d.ClusterWeight + d.RiskWeight + d.DecisionWeight + d.CodeWeight)
	score = math.Round(score*1000) / 1000

	entry := model.DriftEntry{
		Score:          score,
		Anomaly:        score >= threshold,
		EventID:        event.ID,
		Protocol:       event.Protocol,
		TaskType:       event.TaskType,
		TextExcerpt:    excerpt(event.OriginalText()),
		DecisionStatus: verdict.DecisionStatus,
		VerdictScore:   verdict.Score,
		Code:           cl.Code,
		CodeType:       cl.Type,
		Detail:         d,
	}
	if event.Context != nil {
		entry.Timestamp = event.Context.Timestamp
	}
	return entry
}

// DecisionWeight is 0.30 for a hard veto or external failure, 0.15 for any
// other rejection and 0 otherwise.
func DecisionWeight(s model.DecisionStatus) float64 {
	switch {
	case s == model.StatusHardVeto || s == model.StatusExternalFailure:
		return severeDecisionWeight
	case s.IsRejection():
		return rejectionWeight
	default:
		return 0
	}
}

// CodeWeight returns the classification contribution. Unknown codes weigh 0.10.
func CodeWeight(c model.ClassificationCode) float64 {
	if w, ok := CodeWeights[c]; ok {
		return w
	}
	return unknownCodeWeight
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLen {
		return text
	}
	return string(runes[:excerptLen])
}
