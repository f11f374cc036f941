package model

import "time"

// GenesisNodeID is the previous_node_id of the first node in a new ledger.
const GenesisNodeID = "GENESIS_NODE_0000"

// RiskLevel is the coarse risk grade assigned to an event by the translator.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// RiskRank maps risk levels to a comparable integer for monotonic escalation.
// UNKNOWN sits between MEDIUM and HIGH, matching its drift weight.
var RiskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskUnknown:  2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// ParseRiskLevel maps a string to a RiskLevel. Unrecognized input → UNKNOWN.
func ParseRiskLevel(s string) RiskLevel {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical, RiskUnknown:
		return RiskLevel(s)
	default:
		return RiskUnknown
	}
}

// Task types understood by the classifier.
const (
	TaskNLRequest   = "NL_REQUEST"
	TaskModelQuery  = "MODEL_QUERY"
	TaskArbitrate   = "ARBITRATE"
	TaskParseFailed = "PARSE_FAILED"
	TaskSystemMeta  = "SYSTEM_META_GOVERNANCE"
)

// EventContext carries the translated content of one input.
type EventContext struct {
	OriginalText   string    `json:"original_text"`
	RiskLevel      RiskLevel `json:"risk_level"`
	PolicyClusters []string  `json:"policy_clusters"`
	Anchors        []string  `json:"semantic_anchors"`
	Timestamp      time.Time `json:"timestamp"`
	Summary        string    `json:"summary,omitempty"`
	Attendees      []string  `json:"attendees,omitempty"`
	DurationSec    int       `json:"duration_sec,omitempty"`
}

// HasCluster reports whether the named policy cluster was inferred.
func (c *EventContext) HasCluster(name string) bool {
	for _, p := range c.PolicyClusters {
		if p == name {
			return true
		}
	}
	return false
}

// Event is the structured record produced from one raw input.
// ID doubles as the content marker used for duplicate detection.
type Event struct {
	ID         string        `json:"id"`
	Protocol   string        `json:"protocol"`
	TaskType   string        `json:"task_type"`
	OutputType string        `json:"output_type,omitempty"`
	Source     string        `json:"source,omitempty"`
	Context    *EventContext `json:"context"`
}

// Complete reports whether the event carries a protocol tag, a context,
// the original text and a timestamp.
func (e *Event) Complete() bool {
	if e.Protocol == "" || e.Context == nil {
		return false
	}
	return e.Context.OriginalText != "" && !e.Context.Timestamp.IsZero()
}

// OriginalText returns the raw input text, or "" when the context is absent.
func (e *Event) OriginalText() string {
	if e.Context == nil {
		return ""
	}
	return e.Context.OriginalText
}

// Candidate is one interpretation competing in an arbitration call.
type Candidate struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	VetoFlag bool     `json:"veto_flag"`
	Weight   *float64 `json:"weight,omitempty"`
}

// DecisionStatus is the terminal outcome of arbitration.
type DecisionStatus string

const (
	StatusAccepted        DecisionStatus = "ACCEPTED"
	StatusHardVeto        DecisionStatus = "REJECTED_HARD_VETO"
	StatusExternalFailure DecisionStatus = "REJECTED_EXTERNAL_FAILURE"
	StatusRejected        DecisionStatus = "REJECTED"
	StatusUnknown         DecisionStatus = "UNKNOWN"
)

// IsRejection reports whether the status is any kind of rejection.
func (s DecisionStatus) IsRejection() bool {
	switch s {
	case StatusHardVeto, StatusExternalFailure, StatusRejected:
		return true
	}
	return false
}

// Verdict is the immutable result of one arbitration call.
type Verdict struct {
	DecisionStatus DecisionStatus `json:"decision_status"`
	Score          float64        `json:"score"`
	Reason         string         `json:"reason"`
	AcceptedID     string         `json:"accepted_id,omitempty"`
	VetoClass      string         `json:"veto_class,omitempty"`
}

// AuditMetadata identifies where and when an audit entry was produced.
type AuditMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	Signature *string   `json:"signature"`
}

// AuditEntry is one Policy/Risk/Action record. Never mutated after creation.
type AuditEntry struct {
	Policy   string        `json:"policy"`
	Risk     string        `json:"risk"`
	Action   string        `json:"action"`
	Metadata AuditMetadata `json:"metadata"`
}

// LedgerNode is one frozen decision in the hash-linked ledger.
type LedgerNode struct {
	NodeID            string     `json:"node_id"`
	NodeIndex         int        `json:"node_index"`
	PreviousNodeID    string     `json:"previous_node_id"`
	CreationTimestamp time.Time  `json:"creation_timestamp"`
	ChainHash         string     `json:"chain_hash"`
	Event             Event      `json:"event"`
	Verdict           Verdict    `json:"verdict"`
	AuditEntry        AuditEntry `json:"audit_entry"`
}
