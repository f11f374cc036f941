// Package arbitrate implements L-α arbitration: a fixed five-stage filter
// over candidate interpretations that yields one accepted candidate, a
// soft rejection or a terminal hard veto.
package arbitrate

import (
	"fmt"
	"math"
	"time"

	"github.com/ppiankov/metadag/internal/audit"
	"github.com/ppiankov/metadag/internal/model"
)

// Mode selects how weights are compared against the bound.
type Mode string

const (
	// ModeMinScore keeps weight >= bound and selects the maximum.
	ModeMinScore Mode = "min_score"
	// ModeMaxLoss keeps weight <= bound and selects the minimum.
	ModeMaxLoss Mode = "max_loss"
)

const (
	DefaultTrustedRoot = "SEED-CORE"
	DefaultVetoClass   = "IMMUNITY_LAW"
	DefaultBound       = 1.0
	defaultWeight      = 1.0
	rejectionScore     = 1.0
	auditPolicy        = "Arbitration"
)

// Config holds the arbitration parameters.
type Config struct {
	TrustedRoot    string
	TrustedAliases []string
	Mode           Mode
	Bound          float64
	VetoClass      string
}

// DefaultConfig returns the loss-mode arbitration used when no config is loaded.
func DefaultConfig() Config {
	return Config{
		TrustedRoot:    DefaultTrustedRoot,
		TrustedAliases: []string{"seed"},
		Mode:           ModeMaxLoss,
		Bound:          DefaultBound,
		VetoClass:      DefaultVetoClass,
	}
}

// Validate reports configuration that would leave arbitration undefined.
func (c Config) Validate() error {
	if c.TrustedRoot == "" {
		return fmt.Errorf("arbitrate: trusted root is required")
	}
	if c.Mode != ModeMinScore && c.Mode != ModeMaxLoss {
		return fmt.Errorf("arbitrate: unknown mode %q", c.Mode)
	}
	if math.IsNaN(c.Bound) || math.IsInf(c.Bound, 0) {
		return fmt.Errorf("arbitrate: bound must be finite, got %v", c.Bound)
	}
	return nil
}

// Request is one arbitration call.
type Request struct {
	Candidates []model.Candidate
	// Weights overrides candidate weights by id.
	Weights map[string]float64
	// At stamps the audit entry. Zero means now.
	At time.Time
}

// Result is the outcome of one call. Accepted is nil unless the verdict is ACCEPTED.
type Result struct {
	Verdict  model.Verdict
	Accepted *model.Candidate
	Audit    model.AuditEntry
	Trace    []TraceEntry
}

// Arbitrator runs arbitration calls. It holds no per-call state and is
// safe for concurrent use.
type Arbitrator struct {
	cfg     Config
	trusted map[string]bool
	now     func() time.Time
}

// New returns an Arbitrator for cfg.
func New(cfg Config) (*Arbitrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	trusted := map[string]bool{cfg.TrustedRoot: true}
	for _, alias := range cfg.TrustedAliases {
		if alias != "" {
			trusted[alias] = true
		}
	}
	return &Arbitrator{cfg: cfg, trusted: trusted, now: time.Now}, nil
}

// Config returns the arbitrator's configuration.
func (a *Arbitrator) Config() Config {
	return a.cfg
}

type scored struct {
	candidate model.Candidate
	weight    float64
}

// Arbitrate runs the seed, traceability, veto, weighting and threshold
// stages in order and selects the extremum among survivors. A single
// veto-flagged survivor of the source checks rejects the whole call.
func (a *Arbitrator) Arbitrate(req Request) Result {
	at := req.At
	if at.IsZero() {
		at = a.now()
	}
	var trace traceLog

	seeded := make([]model.Candidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if a.trusted[c.Source] {
			trace.pass(StageSeed, c.ID, "source "+c.Source)
			seeded = append(seeded, c)
		} else {
			trace.fail(StageSeed, c.ID, fmt.Sprintf("untrusted source %q", c.Source))
		}
	}

	traceable := make([]model.Candidate, 0, len(seeded))
	for _, c := range seeded {
		if c.Source != "" {
			trace.pass(StageTraceability, c.ID, "")
			traceable = append(traceable, c)
		} else {
			trace.fail(StageTraceability, c.ID, "empty source")
		}
	}

	for _, c := range traceable {
		if c.VetoFlag {
			trace.fail(StageVeto, c.ID, "rejected by immunity law")
			return a.veto(c, at, trace)
		}
		trace.pass(StageVeto, c.ID, "")
	}

	weighted := make([]scored, 0, len(traceable))
	for _, c := range traceable {
		w := weightFor(c, req.Weights)
		trace.pass(StageWeighting, c.ID, fmt.Sprintf("weight %g", w))
		weighted = append(weighted, scored{candidate: c, weight: w})
	}

	passed := make([]scored, 0, len(weighted))
	for _, s := range weighted {
		if a.withinBound(s.weight) {
			trace.pass(StageThreshold, s.candidate.ID, fmt.Sprintf("%g within %s %g", s.weight, a.cfg.Mode, a.cfg.Bound))
			passed = append(passed, s)
		} else {
			trace.fail(StageThreshold, s.candidate.ID, fmt.Sprintf("%g outside %s %g", s.weight, a.cfg.Mode, a.cfg.Bound))
		}
	}

	if len(passed) == 0 {
		return a.reject(len(req.Candidates), lastStage(seeded, traceable), at, trace)
	}

	best := passed[0]
	for _, s := range passed[1:] {
		if a.better(s.weight, best.weight) {
			best = s
		}
	}
	trace.pass(StageSelection, best.candidate.ID, fmt.Sprintf("weight %g", best.weight))

	accepted := best.candidate
	return Result{
		Verdict: model.Verdict{
			DecisionStatus: model.StatusAccepted,
			Score:          best.weight,
			Reason:         fmt.Sprintf("accepted %s with weight %g (%s %g)", accepted.ID, best.weight, a.cfg.Mode, a.cfg.Bound),
			AcceptedID:     accepted.ID,
		},
		Accepted: &accepted,
		Audit:    audit.NewEntry(auditPolicy, "Conflict", "Accepted "+accepted.ID, audit.SourceArbitrator, at),
		Trace:    trace.entries,
	}
}

// ExternalFailure builds the result recorded when the text-generation
// backend failed before arbitration could run.
func (a *Arbitrator) ExternalFailure(reason string, at time.Time) Result {
	if at.IsZero() {
		at = a.now()
	}
	return Result{
		Verdict: model.Verdict{
			DecisionStatus: model.StatusExternalFailure,
			Score:          rejectionScore,
			Reason:         reason,
		},
		Audit: audit.NewEntry(auditPolicy, "External", "Failed: "+reason, audit.SourceArbitrator, at),
		Trace: []TraceEntry{{Stage: StageExternal, Passed: false, Detail: reason}},
	}
}

// Unparsed builds the UNKNOWN result recorded when the input could not be
// translated. No candidate is arbitrated.
func (a *Arbitrator) Unparsed(reason string, at time.Time) Result {
	if at.IsZero() {
		at = a.now()
	}
	return Result{
		Verdict: model.Verdict{
			DecisionStatus: model.StatusUnknown,
			Score:          rejectionScore,
			Reason:         "translation failed: " + reason,
		},
		Audit: audit.ParseFailure(at),
		Trace: []TraceEntry{{Stage: StageTranslation, Passed: false, Detail: reason}},
	}
}

func (a *Arbitrator) veto(c model.Candidate, at time.Time, trace traceLog) Result {
	return Result{
		Verdict: model.Verdict{
			DecisionStatus: model.StatusHardVeto,
			Score:          rejectionScore,
			Reason:         fmt.Sprintf("veto: candidate %s rejected by immunity law", c.ID),
			VetoClass:      a.cfg.VetoClass,
		},
		Audit: audit.NewEntry(auditPolicy, "Veto", "Vetoed "+c.ID, audit.SourceArbitrator, at),
		Trace: trace.entries,
	}
}

func (a *Arbitrator) reject(total int, stage Stage, at time.Time, trace traceLog) Result {
	return Result{
		Verdict: model.Verdict{
			DecisionStatus: model.StatusRejected,
			Score:          rejectionScore,
			Reason:         fmt.Sprintf("no candidate survived %s stage", stage),
		},
		Audit: audit.NewEntry(auditPolicy, "Conflict", fmt.Sprintf("Rejected %d candidates", total), audit.SourceArbitrator, at),
		Trace: trace.entries,
	}
}

func (a *Arbitrator) withinBound(w float64) bool {
	if a.cfg.Mode == ModeMinScore {
		return w >= a.cfg.Bound
	}
	return w <= a.cfg.Bound
}

// better is strict so ties keep the earlier candidate.
func (a *Arbitrator) better(w, best float64) bool {
	if a.cfg.Mode == ModeMinScore {
		return w > best
	}
	return w < best
}

func weightFor(c model.Candidate, overrides map[string]float64) float64 {
	if w, ok := overrides[c.ID]; ok {
		return w
	}
	if c.Weight != nil {
		return *c.Weight
	}
	return defaultWeight
}

// lastStage names the stage that emptied the candidate set.
func lastStage(seeded, traceable []model.Candidate) Stage {
	switch {
	case len(seeded) == 0:
		return StageSeed
	case len(traceable) == 0:
		return StageTraceability
	default:
		return StageThreshold
	}
}
