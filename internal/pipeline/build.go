package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/metadag/internal/alert"
	"github.com/ppiankov/metadag/internal/arbitrate"
	"github.com/ppiankov/metadag/internal/audit"
	"github.com/ppiankov/metadag/internal/classify"
	"github.com/ppiankov/metadag/internal/drift"
	"github.com/ppiankov/metadag/internal/ledger"
	"github.com/ppiankov/metadag/internal/metrics"
	"github.com/ppiankov/metadag/internal/policy"
	"github.com/ppiankov/metadag/internal/store"
	"github.com/ppiankov/metadag/internal/translate"
)

// Options are the runtime collaborators that do not come from the policy file.
type Options struct {
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Alerts overrides the dispatcher built from the policy's alerts section.
	Alerts *alert.Dispatcher
}

// FromPolicy assembles an Engine from a validated policy and opened stores.
func FromPolicy(cfg *policy.PolicyConfig, stores *store.Stores, opts Options) (*Engine, error) {
	tr, err := cfg.BuildTranslator()
	if err != nil {
		return nil, err
	}
	arb, err := arbitrate.New(cfg.ArbitrationSettings())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrInvalidConfig, err)
	}
	alerts := opts.Alerts
	if alerts == nil {
		alerts = alert.NewDispatcher(cfg.Alerts, opts.Logger)
	}
	return New(Config{
		Translator:       tr,
		Arbitrator:       arb,
		Classifier:       classify.New(cfg.Classifier.SystemTaskTypes...),
		Audit:            audit.New(stores.Audit, stores.Lock),
		Ledger:           ledger.New(stores.Nodes, stores.VetoIndex, stores.Lock),
		Drift:            drift.NewMonitor(stores.Drift, stores.Lock, cfg.MonitorSettings()),
		Translations:     translate.NewArchive(stores.Translations, stores.Lock),
		RiskControlRule:  cfg.Translator.RiskControlRule,
		CandidateWeights: cfg.CandidateWeights(),
		Timeout:          opts.Timeout,
		Metrics:          opts.Metrics,
		Logger:           opts.Logger,
		Alerts:           alerts,
	})
}
