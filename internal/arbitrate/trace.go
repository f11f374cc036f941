package arbitrate

import "fmt"

// Stage tags a trace entry with the arbitration step that produced it.
type Stage string

const (
	StageSeed         Stage = "SEED"
	StageTraceability Stage = "TRACEABILITY"
	StageVeto         Stage = "VETO"
	StageWeighting    Stage = "WEIGHT"
	StageThreshold    Stage = "THRESHOLD"
	StageSelection    Stage = "SELECT"
	StageExternal     Stage = "EXTERNAL"
	StageTranslation  Stage = "TRANSLATION"
)

// TraceEntry is one pass/fail record. Traces are scoped to a single call
// and are not persisted.
type TraceEntry struct {
	Stage       Stage  `json:"stage"`
	CandidateID string `json:"candidate_id,omitempty"`
	Passed      bool   `json:"passed"`
	Detail      string `json:"detail,omitempty"`
}

func (e TraceEntry) String() string {
	status := "PASS"
	if !e.Passed {
		status = "FAIL"
	}
	s := fmt.Sprintf("%s %s", e.Stage, status)
	if e.CandidateID != "" {
		s += ": " + e.CandidateID
	}
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	return s
}

type traceLog struct {
	entries []TraceEntry
}

func (t *traceLog) pass(stage Stage, id, detail string) {
	t.entries = append(t.entries, TraceEntry{Stage: stage, CandidateID: id, Passed: true, Detail: detail})
}

func (t *traceLog) fail(stage Stage, id, detail string) {
	t.entries = append(t.entries, TraceEntry{Stage: stage, CandidateID: id, Passed: false, Detail: detail})
}
