package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/ppiankov/metadag/internal/model"
)

// Sources that stamp audit entries.
const (
	SourceArbitrator = "Lα"
	SourceEngine     = "engine"
	SourceTranslator = "TUL"
)

const eventIDLen = 16

// eventIDInput is the canonical content an event id is derived from.
type eventIDInput struct {
	Policy    string `json:"policy"`
	Risk      string `json:"risk"`
	Action    string `json:"action"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// NewEntry builds an audit entry stamped at at. The event id is a
// deterministic digest of the entry's content and timestamp.
func NewEntry(policy, risk, action, source string, at time.Time) model.AuditEntry {
	at = at.UTC()
	return model.AuditEntry{
		Policy: policy,
		Risk:   risk,
		Action: action,
		Metadata: model.AuditMetadata{
			Timestamp: at,
			EventID:   EventID(policy, risk, action, source, at),
			Source:    source,
		},
	}
}

// EventID returns the first 16 hex chars of SHA-256 over the JCS form of
// the entry content.
func EventID(policy, risk, action, source string, at time.Time) string {
	raw, err := json.Marshal(eventIDInput{
		Policy:    policy,
		Risk:      risk,
		Action:    action,
		Source:    source,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		// Only string fields; Marshal cannot fail.
		panic(fmt.Sprintf("audit: marshal event id input: %v", err))
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		panic(fmt.Sprintf("audit: canonicalize event id input: %v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:eventIDLen]
}

// SeedRebuild is the entry recorded when state is rebuilt from the seed.
func SeedRebuild(at time.Time) model.AuditEntry {
	return NewEntry("Seed Init", "Reset", "Rebuild", SourceEngine, at)
}

// Translated is the entry recorded for every event the translator produced.
func Translated(eventID string, at time.Time) model.AuditEntry {
	return NewEntry("Context Translation", "Semantic Pre-Filter", "Translated "+eventID, SourceTranslator, at)
}

// ParseFailure is the entry recorded when the translator rejected the input.
func ParseFailure(at time.Time) model.AuditEntry {
	return NewEntry("Translation", "FatalError", "Parsing Failed", SourceTranslator, at)
}

// Abandoned marks the decision entry eventID of a run that stopped before
// its ledger append, so the audit log reconciles with the ledger.
func Abandoned(eventID string, at time.Time) model.AuditEntry {
	return NewEntry("Pipeline", "Timeout", "Abandoned "+eventID, SourceEngine, at)
}
