package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case FormatSlack:
		return formatSlack(event)
	case FormatPagerDuty:
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
	}
	if event.NodeID != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Node:* %s", event.NodeID)})
	}
	if event.DecisionStatus != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Decision:* %s (%s)", event.DecisionStatus, event.Code)})
	}
	if event.Type == TypeDriftAnomaly {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Drift:* %.4f", event.DriftScore)})
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("metadag: %s", event.Type),
				},
			},
			map[string]any{
				"type":   "section",
				"fields": fields,
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("metadag %s: %s", event.Type, event.Reason),
			"severity": severityFor(event.Type),
			"source":   "metadag",
			"custom_details": map[string]any{
				"run_id":          event.RunID,
				"node_id":         event.NodeID,
				"event_id":        event.EventID,
				"decision_status": event.DecisionStatus,
				"drift_score":     event.DriftScore,
				"policy_clusters": event.Clusters,
			},
		},
	}
	return json.Marshal(payload)
}

func severityFor(eventType string) string {
	switch eventType {
	case TypeStateTamper:
		return "critical"
	case TypeHardVeto:
		return "error"
	case TypeDriftAnomaly, TypeExternalFailure:
		return "warning"
	default:
		return "info"
	}
}
