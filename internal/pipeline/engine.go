// Package pipeline runs one input through translation, arbitration,
// classification, drift scoring and the ledger append.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/metadag/internal/alert"
	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/audit"
	"github.com/ppiankov/metadag/internal/classify"
	"github.com/ppiankov/metadag/internal/drift"
	"github.com/ppiankov/metadag/internal/ledger"
	"github.com/ppiankov/metadag/internal/metrics"
	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/translate"
)

const tracerName = "github.com/ppiankov/metadag/internal/pipeline"

// Submission is one input to the pipeline.
type Submission struct {
	Text     string `json:"text"`
	TaskType string `json:"task_type,omitempty"`
	Source   string `json:"source,omitempty"`
	// Candidates replaces the derived candidate set when non-empty.
	Candidates []model.Candidate   `json:"candidates,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	// BackendError is set by the caller when text generation failed; the
	// decision becomes an external failure without arbitration.
	BackendError string `json:"backend_error,omitempty"`
}

// Outcome is everything one pipeline run produced.
type Outcome struct {
	RunID          string                 `json:"run_id"`
	Event          model.Event            `json:"event"`
	Verdict        model.Verdict          `json:"verdict"`
	Accepted       *model.Candidate       `json:"accepted,omitempty"`
	Trace          []arbitrate.TraceEntry `json:"trace"`
	Audit          model.AuditEntry       `json:"audit"`
	Classification model.Classification   `json:"classification"`
	Drift          model.DriftEntry       `json:"drift"`
	Node           model.LedgerNode       `json:"node"`
}

// Config wires an Engine. Translator, Arbitrator, Audit, Ledger and Drift
// are required.
type Config struct {
	Translator       *translate.Translator
	Arbitrator       *arbitrate.Arbitrator
	Classifier       *classify.Classifier
	Audit            *audit.Log
	Ledger           *ledger.Ledger
	Drift            *drift.Monitor
	// Translations archives every translated event. Nil disables it.
	Translations     *translate.Archive
	RiskControlRule  string
	CandidateWeights map[model.RiskLevel]float64
	// Timeout bounds one Process call. Zero means no limit.
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Alerts receives hard veto, external failure and drift anomaly events.
	Alerts *alert.Dispatcher
}

// Engine owns the governance pipeline. Process calls are serialized so
// that classification sees every marker committed before it.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	mu     sync.Mutex
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	var missing []error
	if cfg.Translator == nil {
		missing = append(missing, errors.New("translator"))
	}
	if cfg.Arbitrator == nil {
		missing = append(missing, errors.New("arbitrator"))
	}
	if cfg.Audit == nil {
		missing = append(missing, errors.New("audit log"))
	}
	if cfg.Ledger == nil {
		missing = append(missing, errors.New("ledger"))
	}
	if cfg.Drift == nil {
		missing = append(missing, errors.New("drift monitor"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing components: %w", errors.Join(missing...))
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classify.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}, nil
}

// Ledger returns the engine's ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.cfg.Ledger }

// Audit returns the engine's audit log.
func (e *Engine) Audit() *audit.Log { return e.cfg.Audit }

// Drift returns the engine's drift monitor.
func (e *Engine) Drift() *drift.Monitor { return e.cfg.Drift }

// Translator returns the engine's translator.
func (e *Engine) Translator() *translate.Translator { return e.cfg.Translator }

// Translations returns the translation log, or nil.
func (e *Engine) Translations() *translate.Archive { return e.cfg.Translations }

// Arbitrator returns the engine's arbitrator.
func (e *Engine) Arbitrator() *arbitrate.Arbitrator { return e.cfg.Arbitrator }

// Process runs one submission end to end. Input the translator rejects is
// not arbitrated; it is recorded with an UNKNOWN verdict. The drift entry
// is recorded even when the ledger append fails; a drift write failure is
// logged and does not fail the run. The context deadline is checked once,
// before the ledger append.
func (e *Engine) Process(ctx context.Context, sub Submission) (*Outcome, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	ctx, span := e.tracer.Start(ctx, "pipeline.Process")
	defer span.End()

	out := &Outcome{RunID: uuid.NewString()}
	log := e.logger.With("run_id", out.RunID)
	// Stores only observe the deadline at the explicit check below.
	storeCtx := context.WithoutCancel(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	event, translateErr := e.cfg.Translator.Translate(sub.Text, sub.TaskType, sub.Source)
	if translateErr != nil {
		log.WarnContext(ctx, "translation failed", "error", translateErr)
		e.recordError("translate")
		source := sub.Source
		if source == "" {
			source = "cli"
		}
		event = translate.FailedEvent(sub.Text, source, now)
	} else if err := e.archive(storeCtx, event, now); err != nil {
		return e.fail(span, out, "audit", err)
	}
	out.Event = event

	var res arbitrate.Result
	switch {
	case sub.BackendError != "":
		res = e.cfg.Arbitrator.ExternalFailure(sub.BackendError, now)
	case translateErr != nil:
		res = e.cfg.Arbitrator.Unparsed(translateErr.Error(), now)
	default:
		candidates := sub.Candidates
		if len(candidates) == 0 {
			candidates = DeriveCandidates(event, e.cfg.Arbitrator.Config().TrustedRoot, e.cfg.RiskControlRule, e.cfg.CandidateWeights)
		}
		res = e.cfg.Arbitrator.Arbitrate(arbitrate.Request{Candidates: candidates, Weights: sub.Weights, At: now})
	}
	out.Verdict, out.Accepted, out.Trace, out.Audit = res.Verdict, res.Accepted, res.Trace, res.Audit
	span.SetAttributes(
		attribute.String("metadag.event_id", event.ID),
		attribute.String("metadag.decision_status", string(res.Verdict.DecisionStatus)),
	)
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordDecision(res.Verdict.DecisionStatus)
	}

	if err := e.cfg.Audit.Record(storeCtx, res.Audit); err != nil {
		return e.fail(span, out, "audit", err)
	}

	markers, err := e.cfg.Ledger.Markers(storeCtx)
	if err != nil {
		return e.fail(span, out, "classify", err)
	}
	out.Classification = e.cfg.Classifier.Classify(event, res.Verdict, classify.NewMarkerSet(markers...))
	if out.Classification.Assertion {
		log.WarnContext(ctx, "classification fell through", "reason", out.Classification.Reason)
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordClassification(out.Classification.Code)
	}

	entry, err := e.cfg.Drift.Record(storeCtx, event, res.Verdict, out.Classification)
	out.Drift = entry
	if err != nil {
		log.ErrorContext(ctx, "drift record failed", "error", err)
		e.recordError("drift")
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordDrift(entry)
	}
	if entry.Anomaly {
		log.WarnContext(ctx, "drift anomaly", "score", entry.Score, "threshold", e.cfg.Drift.Threshold())
		e.cfg.Alerts.Dispatch(alert.Event{
			Type:           alert.TypeDriftAnomaly,
			Timestamp:      now,
			RunID:          out.RunID,
			EventID:        event.ID,
			DecisionStatus: string(res.Verdict.DecisionStatus),
			Code:           string(out.Classification.Code),
			DriftScore:     entry.Score,
			Clusters:       entry.Detail.Clusters,
			Reason:         fmt.Sprintf("drift %.4f at or above %.4f", entry.Score, e.cfg.Drift.Threshold()),
		})
	}

	if err := ctx.Err(); err != nil {
		if aerr := e.cfg.Audit.Record(storeCtx, audit.Abandoned(res.Audit.Metadata.EventID, e.now())); aerr != nil {
			err = errors.Join(err, aerr)
		}
		return e.fail(span, out, "timeout", err)
	}

	start := time.Now()
	node, err := e.cfg.Ledger.Append(storeCtx, event, res.Verdict, res.Audit)
	if err != nil {
		return e.fail(span, out, "ledger", err)
	}
	out.Node = node
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.ObserveAppend(start)
		if node.Verdict.DecisionStatus == model.StatusHardVeto {
			if vetoes, err := e.cfg.Ledger.VetoIndex(storeCtx); err == nil {
				e.cfg.Metrics.SetVetoIndexSize(len(vetoes))
			}
		}
	}

	switch node.Verdict.DecisionStatus {
	case model.StatusHardVeto:
		e.cfg.Alerts.Dispatch(decisionAlert(alert.TypeHardVeto, out))
	case model.StatusExternalFailure:
		e.cfg.Alerts.Dispatch(decisionAlert(alert.TypeExternalFailure, out))
	}

	log.InfoContext(ctx, "decision recorded",
		"node_id", node.NodeID,
		"node_index", node.NodeIndex,
		"status", res.Verdict.DecisionStatus,
		"code", out.Classification.Code,
		"drift", entry.Score,
	)
	return out, nil
}

// Translate translates text and, when record is set, archives the event
// and its audit entry as Process does. Nothing is arbitrated.
func (e *Engine) Translate(ctx context.Context, text, taskType, source string, record bool) (model.Event, error) {
	event, err := e.cfg.Translator.Translate(text, taskType, source)
	if err != nil || !record {
		return event, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.archive(ctx, event, e.now().UTC()); err != nil {
		return event, fmt.Errorf("pipeline: translate: %w", err)
	}
	return event, nil
}

// archive appends event to the translation log, which is best effort, and
// records the translation audit entry.
func (e *Engine) archive(ctx context.Context, event model.Event, at time.Time) error {
	if e.cfg.Translations != nil {
		if err := e.cfg.Translations.Record(ctx, event); err != nil {
			e.logger.ErrorContext(ctx, "translation log write failed", "event_id", event.ID, "error", err)
			e.recordError("translation_log")
		}
	}
	return e.cfg.Audit.Record(ctx, audit.Translated(event.ID, at))
}

// Arbitrate runs one standalone arbitration call and records its audit
// entry. Nothing is appended to the ledger.
func (e *Engine) Arbitrate(ctx context.Context, req arbitrate.Request) (arbitrate.Result, error) {
	_, span := e.tracer.Start(ctx, "pipeline.Arbitrate")
	defer span.End()

	if req.At.IsZero() {
		req.At = e.now().UTC()
	}
	res := e.cfg.Arbitrator.Arbitrate(req)
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordDecision(res.Verdict.DecisionStatus)
	}
	if err := e.cfg.Audit.Record(context.WithoutCancel(ctx), res.Audit); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit")
		e.recordError("audit")
		return res, fmt.Errorf("pipeline: arbitrate: %w", err)
	}
	return res, nil
}

// Rebuild records the seed rebuild entry in the audit log.
func (e *Engine) Rebuild(ctx context.Context) (model.AuditEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := audit.SeedRebuild(e.now())
	if err := e.cfg.Audit.Record(ctx, entry); err != nil {
		return entry, fmt.Errorf("pipeline: rebuild: %w", err)
	}
	e.logger.InfoContext(ctx, "seed rebuild recorded", "event_id", entry.Metadata.EventID)
	return entry, nil
}

func decisionAlert(eventType string, out *Outcome) alert.Event {
	ev := alert.Event{
		Type:           eventType,
		Timestamp:      out.Node.CreationTimestamp,
		RunID:          out.RunID,
		NodeID:         out.Node.NodeID,
		EventID:        out.Event.ID,
		DecisionStatus: string(out.Verdict.DecisionStatus),
		Code:           string(out.Classification.Code),
		DriftScore:     out.Drift.Score,
		Reason:         out.Verdict.Reason,
	}
	if out.Event.Context != nil {
		ev.Clusters = out.Event.Context.PolicyClusters
	}
	return ev
}

func (e *Engine) fail(span trace.Span, out *Outcome, stage string, err error) (*Outcome, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	e.recordError(stage)
	e.logger.Error("pipeline failed", "run_id", out.RunID, "stage", stage, "error", err)
	return out, fmt.Errorf("pipeline: %s: %w", stage, err)
}

func (e *Engine) recordError(stage string) {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordError(stage)
	}
}
