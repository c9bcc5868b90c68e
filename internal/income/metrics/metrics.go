package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reconciliation pipeline.
type Metrics struct {
	WebhooksTotal        *prometheus.CounterVec
	FetchDuration        *prometheus.HistogramVec
	ActionFailures       *prometheus.CounterVec
	HistoryRowsAppended  prometheus.Counter
	RetriesIssued        *prometheus.CounterVec
	ManualReviewsFlagged prometheus.Counter
	DeprecatedDeltas     prometheus.Counter
	ProcessingDuration   prometheus.Histogram
}

// New creates and registers the pipeline metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WebhooksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_webhooks_total",
			Help: "Webhook deliveries by terminal outcome",
		}, []string{"outcome"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_upstream_fetch_duration_seconds",
			Help:    "Upstream fetch latency by entity and result",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"entity", "result"}),
		ActionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_reconciliation_action_failures_total",
			Help: "Reconciliation action failures by action",
		}, []string{"action"}),
		HistoryRowsAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "verigate_employment_history_rows_appended_total",
			Help: "Employment history rows appended to the ledger",
		}),
		RetriesIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_verification_retries_total",
			Help: "Verification retries issued upstream by result",
		}, []string{"result"}),
		ManualReviewsFlagged: f.NewCounter(prometheus.CounterOpts{
			Name: "verigate_manual_reviews_flagged_total",
			Help: "Candidates marked for manual office review",
		}),
		DeprecatedDeltas: f.NewCounter(prometheus.CounterOpts{
			Name: "verigate_deprecated_contribution_delta_total",
			Help: "Webhooks that still carried top-level contribution deltas",
		}),
		ProcessingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "verigate_webhook_processing_duration_seconds",
			Help:    "End-to-end processing time of one webhook delivery",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementWebhook(outcome string) {
	m.WebhooksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(entity, result string, elapsed time.Duration) {
	m.FetchDuration.WithLabelValues(entity, result).Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementActionFailure(action string) {
	m.ActionFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) AddHistoryRows(n int) {
	m.HistoryRowsAppended.Add(float64(n))
}

func (m *Metrics) IncrementRetry(result string) {
	m.RetriesIssued.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementManualReview() {
	m.ManualReviewsFlagged.Inc()
}

func (m *Metrics) IncrementDeprecatedDelta() {
	m.DeprecatedDeltas.Inc()
}

func (m *Metrics) ObserveProcessing(elapsed time.Duration) {
	m.ProcessingDuration.Observe(elapsed.Seconds())
}
