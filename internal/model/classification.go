package model

import "time"

// ClassificationCode is one of the eight audit buckets assigned to every decision.
type ClassificationCode string

const (
	CodeSystem          ClassificationCode = "S"
	CodeAction          ClassificationCode = "A"
	CodeFail            ClassificationCode = "F"
	CodeNoise           ClassificationCode = "N"
	CodeVetoTrace       ClassificationCode = "V"
	CodeRepeat          ClassificationCode = "R"
	CodeIllFormed       ClassificationCode = "I"
	CodeExternalFailure ClassificationCode = "E"
)

// CodeLabels names each classification bucket.
var CodeLabels = map[ClassificationCode]string{
	CodeSystem:          "SEED / System",
	CodeAction:          "Action / Task",
	CodeFail:            "Fail",
	CodeNoise:           "Noise",
	CodeVetoTrace:       "Veto Trace",
	CodeRepeat:          "Repeats",
	CodeIllFormed:       "Ill-formed",
	CodeExternalFailure: "External Failure",
}

// AllCodes lists the classification codes in display order.
var AllCodes = []ClassificationCode{
	CodeSystem, CodeAction, CodeFail, CodeNoise,
	CodeVetoTrace, CodeRepeat, CodeIllFormed, CodeExternalFailure,
}

// Classification is the classifier's verdict on one decision.
// Assertion marks the fallback bucket, which a correct pipeline never reaches.
type Classification struct {
	Code      ClassificationCode `json:"code"`
	Type      string             `json:"type"`
	Reason    string             `json:"reason"`
	Assertion bool               `json:"assertion,omitempty"`
}

// DriftDetail breaks a drift score down into its inputs.
type DriftDetail struct {
	ClusterCount   int                `json:"cluster_count"`
	Clusters       []string           `json:"clusters"`
	RiskLevel      RiskLevel          `json:"risk_level"`
	DecisionStatus DecisionStatus     `json:"decision_status"`
	Code           ClassificationCode `json:"classification_code"`
	ClusterWeight  float64            `json:"cluster_weight"`
	RiskWeight     float64            `json:"risk_weight"`
	DecisionWeight float64            `json:"decision_weight"`
	CodeWeight     float64            `json:"code_weight"`
}

// DriftEntry is one passive drift observation. Independent of the ledger.
type DriftEntry struct {
	Timestamp      time.Time          `json:"timestamp"`
	Score          float64            `json:"score"`
	Anomaly        bool               `json:"anomaly"`
	EventID        string             `json:"event_id"`
	Protocol       string             `json:"protocol"`
	TaskType       string             `json:"task_type"`
	TextExcerpt    string             `json:"text_excerpt"`
	DecisionStatus DecisionStatus     `json:"decision_status"`
	VerdictScore   float64            `json:"verdict_score"`
	Code           ClassificationCode `json:"classification_code"`
	CodeType       string             `json:"classification_type"`
	Detail         DriftDetail        `json:"detail"`
}
