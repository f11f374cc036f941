package arbitrate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/metadag/internal/model"
)

// Visualize renders how each candidate fares at every stage, independent
// of the other candidates. A vetoed candidate stops at the veto row.
func (a *Arbitrator) Visualize(candidates []model.Candidate, weights map[string]float64) string {
	var b strings.Builder
	b.WriteString("=== Arbitration Trace ===\n")
	b.WriteString(fmt.Sprintf("mode=%s bound=%g root=%s\n", a.cfg.Mode, a.cfg.Bound, a.cfg.TrustedRoot))

	for _, c := range candidates {
		b.WriteString(fmt.Sprintf("\nCandidate: %s\n", c.ID))
		b.WriteString(" → Seed " + mark(a.trusted[c.Source]) + "\n")
		b.WriteString(" → Traceability " + mark(c.Source != "") + "\n")
		if c.VetoFlag {
			b.WriteString(" → Veto ✗ VETO\n")
			continue
		}
		b.WriteString(" → Veto ✓\n")

		w := weightFor(c, weights)
		b.WriteString(fmt.Sprintf(" → Weight: %g\n", w))
		if a.withinBound(w) {
			b.WriteString(" ✓ PASS\n")
		} else {
			b.WriteString(" ✗ FAIL\n")
		}
	}
	return b.String()
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
