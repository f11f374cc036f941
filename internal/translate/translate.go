// Package translate turns raw text into structured governance events.
// Extraction is keyword and predicate matching over an injected vocabulary;
// it makes no attempt at language understanding.
package translate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/metadag/internal/model"
)

// Marker modes.
const (
	// MarkerContent hashes the normalized text only, so resubmissions collide.
	MarkerContent = "content"
	// MarkerNonce hashes text and timestamp; every submission is unique.
	MarkerNonce = "nonce"
)

// Output types.
const (
	OutputStateChange = "STATE_CHANGE"
	OutputAnalysis    = "ANALYSIS"
)

const (
	markerLen        = 12
	summaryLen       = 30
	defaultDuration  = 3600
	defaultAttendee  = "system@dag.ccr"
	defaultVersion   = "V4.5"
	genericProtocol  = "GENERIC"
	defaultTaskType  = model.TaskNLRequest
	defaultSourceTag = "cli"
)

// ErrEmptyInput is returned for text that is blank after normalization.
var ErrEmptyInput = errors.New("translate: empty input")

// Options configures a Translator.
type Options struct {
	ProtocolVersion string
	MarkerMode      string
	Anchors         []Anchor
	Rules           []Rule
	RiskControlRule string
	Now             func() time.Time
}

// Translator converts text to events. It is safe for concurrent use.
type Translator struct {
	version     string
	markerMode  string
	anchors     []Anchor
	rules       []Rule
	riskControl string
	now         func() time.Time
}

// New builds a Translator. Zero-valued options fall back to the built-in
// vocabulary and rule table.
func New(opts Options) (*Translator, error) {
	t := &Translator{
		version:     opts.ProtocolVersion,
		markerMode:  opts.MarkerMode,
		anchors:     opts.Anchors,
		rules:       opts.Rules,
		riskControl: opts.RiskControlRule,
		now:         opts.Now,
	}
	if t.version == "" {
		t.version = defaultVersion
	}
	switch t.markerMode {
	case "":
		t.markerMode = MarkerContent
	case MarkerContent, MarkerNonce:
	default:
		return nil, fmt.Errorf("translate: unknown marker mode %q", t.markerMode)
	}
	if t.anchors == nil {
		t.anchors = DefaultAnchors()
	}
	if t.rules == nil {
		t.rules = DefaultRules()
		if t.riskControl == "" {
			t.riskControl = DefaultRiskControlRule
		}
	}
	if t.now == nil {
		t.now = time.Now
	}

	seen := make(map[string]bool, len(t.rules))
	for _, r := range t.rules {
		if seen[r.Name()] {
			return nil, fmt.Errorf("translate: duplicate rule %q", r.Name())
		}
		seen[r.Name()] = true
	}
	if t.riskControl != "" && !seen[t.riskControl] {
		return nil, fmt.Errorf("translate: risk-control rule %q not in rule table", t.riskControl)
	}
	return t, nil
}

// Translate builds an Event from text. taskType and source default to
// NL_REQUEST and "cli". Every rule is evaluated in table order and all
// matches are kept.
func (t *Translator) Translate(text, taskType, source string) (model.Event, error) {
	normalized := strings.TrimSpace(norm.NFC.String(text))
	if normalized == "" {
		return model.Event{}, ErrEmptyInput
	}
	if taskType == "" {
		taskType = defaultTaskType
	}
	if source == "" {
		source = defaultSourceTag
	}
	ts := t.now().UTC()
	lower := strings.ToLower(normalized)

	anchors := []string{}
	for _, a := range t.anchors {
		if containsAny(lower, a.Keywords) {
			anchors = append(anchors, a.Name)
		}
	}

	clusters := []string{}
	riskControlHit := false
	for _, r := range t.rules {
		ok, err := r.Match(normalized)
		if err != nil {
			return model.Event{}, err
		}
		if !ok {
			continue
		}
		clusters = append(clusters, r.Name())
		if r.Name() == t.riskControl {
			riskControlHit = true
		}
	}

	risk := model.RiskLow
	switch {
	case riskControlHit:
		risk = model.RiskHigh
	case len(clusters) > 0:
		risk = model.RiskMedium
	}

	tag := genericProtocol
	if len(anchors) > 0 {
		tag = strings.ToUpper(strings.Join(anchors, "-"))
	}

	return model.Event{
		ID:         t.marker(normalized, ts),
		Protocol:   t.version + "/" + tag,
		TaskType:   taskType,
		OutputType: OutputType(taskType),
		Source:     source,
		Context: &model.EventContext{
			OriginalText:   normalized,
			RiskLevel:      risk,
			PolicyClusters: clusters,
			Anchors:        anchors,
			Timestamp:      ts,
			Summary:        summarize(normalized),
			Attendees:      []string{defaultAttendee},
			DurationSec:    defaultDuration,
		},
	}, nil
}

// Marker returns the content marker text would receive at ts.
func (t *Translator) Marker(text string, ts time.Time) string {
	return t.marker(strings.TrimSpace(norm.NFC.String(text)), ts.UTC())
}

func (t *Translator) marker(normalized string, ts time.Time) string {
	input := normalized
	if t.markerMode == MarkerNonce {
		input = normalized + "|" + strconv.FormatInt(ts.UnixNano(), 10)
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:markerLen]
}

// OutputType derives the expected output type from a task type.
func OutputType(taskType string) string {
	lower := strings.ToLower(taskType)
	if strings.Contains(lower, "request") || strings.Contains(lower, "sync") {
		return OutputStateChange
	}
	return OutputAnalysis
}

// FailedEvent builds the event recorded when text could not be translated.
// It has no protocol tag, so the classifier resolves it to F.
func FailedEvent(text, source string, at time.Time) model.Event {
	at = at.UTC()
	sum := sha256.Sum256([]byte(text + "|" + strconv.FormatInt(at.UnixNano(), 10)))
	return model.Event{
		ID:       hex.EncodeToString(sum[:])[:markerLen],
		TaskType: model.TaskParseFailed,
		Source:   source,
		Context: &model.EventContext{
			OriginalText:   text,
			RiskLevel:      model.RiskUnknown,
			PolicyClusters: []string{},
			Anchors:        []string{},
			Timestamp:      at,
		},
	}
}

func summarize(text string) string {
	if utf8.RuneCountInString(text) <= summaryLen {
		return "TUL: " + text
	}
	runes := []rune(text)
	return "TUL: " + string(runes[:summaryLen]) + "..."
}
