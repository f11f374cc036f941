// Package alert posts governance events to webhook endpoints.
package alert

import (
	"fmt"
	"time"
)

// Event types a webhook can subscribe to.
const (
	TypeHardVeto        = "hard_veto"
	TypeExternalFailure = "external_failure"
	TypeDriftAnomaly    = "drift_anomaly"
	TypeStateTamper     = "state_tamper"
)

// Payload formats.
const (
	FormatGeneric   = "generic"
	FormatSlack     = "slack"
	FormatPagerDuty = "pagerduty"
)

// WebhookConfig defines one alert destination.
type WebhookConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // generic, slack, pagerduty
	Events  []string          `yaml:"events"  json:"events"` // hard_veto, external_failure, drift_anomaly, state_tamper
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`
}

// Validate checks the URL, format and event names.
func (c WebhookConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	switch c.Format {
	case "", FormatGeneric, FormatSlack, FormatPagerDuty:
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if len(c.Events) == 0 {
		return fmt.Errorf("at least one event is required")
	}
	for _, e := range c.Events {
		switch e {
		case TypeHardVeto, TypeExternalFailure, TypeDriftAnomaly, TypeStateTamper:
		default:
			return fmt.Errorf("unknown event %q", e)
		}
	}
	return nil
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	RunID          string    `json:"run_id,omitempty"`
	NodeID         string    `json:"node_id,omitempty"`
	EventID        string    `json:"event_id,omitempty"`
	DecisionStatus string    `json:"decision_status,omitempty"`
	Code           string    `json:"classification_code,omitempty"`
	DriftScore     float64   `json:"drift_score,omitempty"`
	Clusters       []string  `json:"policy_clusters,omitempty"`
	Reason         string    `json:"reason"`
}
