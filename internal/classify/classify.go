// Package classify assigns every decision one of eight audit buckets.
// Classification never blocks a ledger append.
package classify

import (
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/metadag/internal/model"
)

const (
	noiseMinLen      = 4
	noiseMaxDistinct = 3
)

// History answers duplicate lookups against prior ledger content.
type History interface {
	HasMarker(marker string) bool
}

// MarkerSet is a History over a snapshot of content markers.
type MarkerSet map[string]struct{}

// NewMarkerSet returns a set holding markers.
func NewMarkerSet(markers ...string) MarkerSet {
	s := make(MarkerSet, len(markers))
	for _, m := range markers {
		s.Add(m)
	}
	return s
}

// Add inserts marker. Empty markers are ignored.
func (s MarkerSet) Add(marker string) {
	if marker != "" {
		s[marker] = struct{}{}
	}
}

func (s MarkerSet) HasMarker(marker string) bool {
	_, ok := s[marker]
	return ok
}

// Classifier is a pure function of its inputs plus the configured system task types.
type Classifier struct {
	systemTasks map[string]bool
}

// New returns a Classifier. With no task types, SYSTEM_META_GOVERNANCE is
// the only system task.
func New(systemTaskTypes ...string) *Classifier {
	if len(systemTaskTypes) == 0 {
		systemTaskTypes = []string{model.TaskSystemMeta}
	}
	c := &Classifier{systemTasks: make(map[string]bool, len(systemTaskTypes))}
	for _, tt := range systemTaskTypes {
		c.systemTasks[tt] = true
	}
	return c
}

// Classify evaluates the buckets in fixed precedence; the first match wins.
// history may be nil, in which case nothing is a repeat.
func (c *Classifier) Classify(event model.Event, verdict model.Verdict, history History) model.Classification {
	text := event.OriginalText()

	switch {
	case IsNoise(text):
		return result(model.CodeNoise, "input is low-entropy alphanumeric noise")
	case verdict.DecisionStatus == model.StatusHardVeto:
		return result(model.CodeVetoTrace, "arbitration issued a hard veto")
	case verdict.DecisionStatus == model.StatusExternalFailure:
		return result(model.CodeExternalFailure, "text-generation backend failed")
	case !event.Complete():
		if event.TaskType == model.TaskParseFailed && event.Protocol == "" {
			return result(model.CodeFail, "translation failed and no protocol tag was produced")
		}
		return result(model.CodeIllFormed, "event is incomplete; flagged for review")
	case history != nil && event.ID != "" && history.HasMarker(event.ID):
		return result(model.CodeRepeat, "content marker already present in ledger")
	case c.systemTasks[event.TaskType]:
		return result(model.CodeSystem, "system or meta-governance command")
	case verdict.DecisionStatus == model.StatusAccepted:
		return result(model.CodeAction, "accepted action")
	}

	cl := result(model.CodeIllFormed, "unclassifiable combination of "+string(verdict.DecisionStatus)+" and task "+event.TaskType)
	cl.Assertion = true
	return cl
}

// IsNoise reports text of at least four characters built from fewer than
// three distinct letters or digits.
func IsNoise(text string) bool {
	if utf8.RuneCountInString(text) < noiseMinLen {
		return false
	}
	distinct := make(map[rune]struct{}, noiseMaxDistinct)
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
		distinct[r] = struct{}{}
	}
	return len(distinct) < noiseMaxDistinct
}

func result(code model.ClassificationCode, reason string) model.Classification {
	return model.Classification{
		Code:   code,
		Type:   model.CodeLabels[code],
		Reason: reason,
	}
}
