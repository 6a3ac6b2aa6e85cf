package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the declaration workflow.
type Metrics struct {
	// Verification stage latency and results
	StageLatency *prometheus.HistogramVec
	StageResults *prometheus.CounterVec

	// Pipeline deliveries dropped because the generation was stale or the draft closed
	StaleDeliveries prometheus.Counter

	// Submit outcomes by source type and derived status
	SubmitOutcomes *prometheus.CounterVec
	SubmitFailures *prometheus.CounterVec

	// Open wizard sessions
	ActiveSessions prometheus.Gauge
	ExpiredDrafts  prometheus.Counter

	// Review transitions
	Reviews *prometheus.CounterVec
}

// New creates a new Metrics instance with all declaration metrics registered.
func New() *Metrics {
	return &Metrics{
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verdant_verification_stage_duration_seconds",
			Help:    "Duration of external verification calls by stage",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}), // stage: "geometry", "satellite"

		StageResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_verification_stage_results_total",
			Help: "Verification stage results by stage and result",
		}, []string{"stage", "result"}), // result: "compliant", "non_compliant", "timeout", ...

		StaleDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_verification_stale_deliveries_total",
			Help: "Pipeline updates ignored because the draft moved on",
		}),

		SubmitOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_declaration_submits_total",
			Help: "Successful submits by source type and derived status",
		}, []string{"source_type", "status"}),

		SubmitFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_declaration_submit_failures_total",
			Help: "Failed submits by error code",
		}, []string{"code"}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "verdant_wizard_active_sessions",
			Help: "Open wizard sessions",
		}),

		ExpiredDrafts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verdant_wizard_expired_drafts_total",
			Help: "Drafts discarded by the idle-session sweep",
		}),

		Reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verdant_declaration_reviews_total",
			Help: "Review transitions by resulting status",
		}, []string{"status"}),
	}
}

// ObserveStage records one stage call and its result label.
func (m *Metrics) ObserveStage(stage, result string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
		m.StageResults.WithLabelValues(stage, result).Inc()
	}
}

func (m *Metrics) IncStaleDelivery() {
	if m != nil {
		m.StaleDeliveries.Inc()
	}
}

func (m *Metrics) IncSubmit(sourceType, status string) {
	if m != nil {
		m.SubmitOutcomes.WithLabelValues(sourceType, status).Inc()
	}
}

func (m *Metrics) IncSubmitFailure(code string) {
	if m != nil {
		m.SubmitFailures.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) IncExpired() {
	if m != nil {
		m.ExpiredDrafts.Inc()
	}
}

func (m *Metrics) IncReview(status string) {
	if m != nil {
		m.Reviews.WithLabelValues(status).Inc()
	}
}
