// Package metrics exposes Prometheus instruments for the governance pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/metadag/internal/model"
)

// Metrics tracks decisions, classifications, drift and ledger writes.
type Metrics struct {
	Decisions       *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	DriftScore      prometheus.Histogram
	DriftAnomalies  prometheus.Counter
	AppendDuration  prometheus.Histogram
	VetoIndexSize   prometheus.Gauge
	PipelineErrors  *prometheus.CounterVec
}

// New registers all instruments with reg. Pass prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "metadag_decisions_total",
			Help: "Arbitration verdicts by decision status",
		}, []string{"status"}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "metadag_classifications_total",
			Help: "Classified decisions by code",
		}, []string{"code"}),
		DriftScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "metadag_drift_score",
			Help:    "Semantic drift score per decision",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		DriftAnomalies: f.NewCounter(prometheus.CounterOpts{
			Name: "metadag_drift_anomalies_total",
			Help: "Decisions whose drift score reached the anomaly threshold",
		}),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "metadag_ledger_append_duration_seconds",
			Help:    "Duration of ledger appends (whole-document rewrite)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VetoIndexSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "metadag_veto_index_size",
			Help: "Number of node ids in the veto index",
		}),
		PipelineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "metadag_pipeline_errors_total",
			Help: "Pipeline failures by stage",
		}, []string{"stage"}),
	}
}

// RecordDecision counts one verdict.
func (m *Metrics) RecordDecision(status model.DecisionStatus) {
	m.Decisions.WithLabelValues(string(status)).Inc()
}

// RecordClassification counts one classification.
func (m *Metrics) RecordClassification(code model.ClassificationCode) {
	m.Classifications.WithLabelValues(string(code)).Inc()
}

// RecordDrift observes a drift entry.
func (m *Metrics) RecordDrift(e model.DriftEntry) {
	m.DriftScore.Observe(e.Score)
	if e.Anomaly {
		m.DriftAnomalies.Inc()
	}
}

// ObserveAppend records the duration of a ledger append.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAppend(start time.Time) {
	m.AppendDuration.Observe(time.Since(start).Seconds())
}

// SetVetoIndexSize sets the veto index gauge.
func (m *Metrics) SetVetoIndexSize(n int) {
	m.VetoIndexSize.Set(float64(n))
}

// RecordError counts a failure at stage.
func (m *Metrics) RecordError(stage string) {
	m.PipelineErrors.WithLabelValues(stage).Inc()
}
