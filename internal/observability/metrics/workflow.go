package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/docrepo-assistant/internal/core/domain"
)

// WorkflowMetrics implements ports.WorkflowObserver on top of a shared
// registry.
type WorkflowMetrics struct {
	service string

	classificationsTotal   *prometheus.CounterVec
	classificationDuration *prometheus.HistogramVec
	confidence             prometheus.Histogram
	busyTotal              prometheus.Counter
	ledgerRepairsTotal     prometheus.Counter
}

func NewWorkflowMetrics(service string, registerer prometheus.Registerer) *WorkflowMetrics {
	labels := prometheus.Labels{"service": service}

	m := &WorkflowMetrics{
		service: service,
		classificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "runs_total",
				Help:      "Finished classification runs by end state, failed stage and tagging.",
			},
			[]string{"service", "state", "failed_stage", "tagged"},
		),
		classificationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "classification",
				Name:      "duration_seconds",
				Help:      "Classification run duration in seconds by end state.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"service", "state"},
		),
		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "classification",
				Name:        "confidence",
				Help:        "Distribution of classifier confidence for successful runs.",
				Buckets:     []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
				ConstLabels: labels,
			},
		),
		busyTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "classification",
				Name:        "busy_total",
				Help:        "Classification requests rejected because a run was in flight.",
				ConstLabels: labels,
			},
		),
		ledgerRepairsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "ledger",
				Name:        "current_repairs_total",
				Help:        "Times the ledger re-asserted a single current version.",
				ConstLabels: labels,
			},
		),
	}

	registerer.MustRegister(
		m.classificationsTotal,
		m.classificationDuration,
		m.confidence,
		m.busyTotal,
		m.ledgerRepairsTotal,
	)
	return m
}

func (m *WorkflowMetrics) ObserveClassification(outcome domain.ClassificationOutcome, duration time.Duration) {
	state := string(outcome.State)
	m.classificationsTotal.WithLabelValues(m.service, state, string(outcome.FailedStage), strconv.FormatBool(outcome.Tagged)).Inc()
	m.classificationDuration.WithLabelValues(m.service, state).Observe(duration.Seconds())
	if outcome.Result != nil && outcome.Result.Success {
		m.confidence.Observe(outcome.Result.Confidence)
	}
}

func (m *WorkflowMetrics) ObserveBusy() {
	m.busyTotal.Inc()
}

func (m *WorkflowMetrics) ObserveLedgerRepair() {
	m.ledgerRepairsTotal.Inc()
}
