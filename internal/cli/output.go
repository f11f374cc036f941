package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/pipeline"
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func checkFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid --format %q (text|json)", format)
	}
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	ev := out.Event
	risk, clusters := model.RiskUnknown, "-"
	if ev.Context != nil {
		risk = ev.Context.RiskLevel
		if len(ev.Context.PolicyClusters) > 0 {
			clusters = strings.Join(ev.Context.PolicyClusters, ",")
		}
	}
	fmt.Fprintf(w, "run:       %s\n", out.RunID)
	fmt.Fprintf(w, "event:     %s  task=%s risk=%s pec=%s\n", ev.ID, ev.TaskType, risk, clusters)
	fmt.Fprintf(w, "decision:  %s", out.Verdict.DecisionStatus)
	if out.Verdict.AcceptedID != "" {
		fmt.Fprintf(w, "  accepted=%s score=%g", out.Verdict.AcceptedID, out.Verdict.Score)
	}
	fmt.Fprintln(w)
	if out.Verdict.Reason != "" {
		fmt.Fprintf(w, "reason:    %s\n", out.Verdict.Reason)
	}
	fmt.Fprintf(w, "class:     %s (%s) %s\n", out.Classification.Code, out.Classification.Type, out.Classification.Reason)
	fmt.Fprintf(w, "drift:     %.4f", out.Drift.Score)
	if out.Drift.Anomaly {
		fmt.Fprint(w, "  ANOMALY")
	}
	fmt.Fprintln(w)
	if out.Node.NodeID != "" {
		fmt.Fprintf(w, "node:      #%d %s\n", out.Node.NodeIndex, out.Node.NodeID)
	}
}

func printNodes(w io.Writer, nodes []model.LedgerNode, format string) error {
	if format == "json" {
		if nodes == nil {
			nodes = []model.LedgerNode{}
		}
		return printJSON(w, nodes)
	}
	if len(nodes) == 0 {
		fmt.Fprintln(w, "no matching nodes")
		return nil
	}
	for _, n := range nodes {
		clusters := "-"
		if n.Event.Context != nil && len(n.Event.Context.PolicyClusters) > 0 {
			clusters = strings.Join(n.Event.Context.PolicyClusters, ",")
		}
		fmt.Fprintf(w, "#%-4d %s  %-26s  %-12s  pec=%s  %s\n",
			n.NodeIndex,
			n.CreationTimestamp.Format(time.RFC3339),
			n.Verdict.DecisionStatus,
			n.Event.TaskType,
			clusters,
			n.NodeID,
		)
	}
	return nil
}
