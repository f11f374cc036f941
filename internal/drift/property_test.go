package drift

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ppiankov/metadag/internal/model"
)

var (
	riskOrder   = []model.RiskLevel{model.RiskLow, model.RiskMedium, model.RiskUnknown, model.RiskHigh, model.RiskCritical}
	statusOrder = []model.DecisionStatus{model.StatusAccepted, model.StatusRejected, model.StatusHardVeto}
	codeOrder   = []model.ClassificationCode{
		model.CodeAction, model.CodeSystem, model.CodeRepeat, model.CodeNoise,
		model.CodeFail, model.CodeVetoTrace,
	}
)

func scoreAt(clusters, risk, status, code int) float64 {
	var pecs []string
	if clusters > 0 {
		pecs = []string{"PEC-1"}
	}
	e := Score(event(pecs, riskOrder[risk]), model.Verdict{DecisionStatus: statusOrder[status]}, classification(codeOrder[code]), DefaultAnomalyThreshold)
	return e.Score
}

// Property: worsening any one input never lowers the score.
func TestPropertyScoreMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("score is non-decreasing per input", prop.ForAll(
		func(clusters, risk, status, code int) bool {
			s := scoreAt(clusters, risk, status, code)
			if clusters == 1 && scoreAt(0, risk, status, code) < s {
				return false
			}
			if risk+1 < len(riskOrder) && scoreAt(clusters, risk+1, status, code) < s {
				return false
			}
			if status+1 < len(statusOrder) && scoreAt(clusters, risk, status+1, code) < s {
				return false
			}
			if code+1 < len(codeOrder) && scoreAt(clusters, risk, status, code+1) < s {
				return false
			}
			return s >= 0 && s <= 1
		},
		gen.IntRange(0, 1),
		gen.IntRange(0, len(riskOrder)-1),
		gen.IntRange(0, len(statusOrder)-1),
		gen.IntRange(0, len(codeOrder)-1),
	))

	properties.TestingRun(t)
}
