package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

// New creates and registers the HTTP metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verigate_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "verigate_http_requests_total",
			Help: "Total HTTP requests by route and status class",
		}, []string{"route", "status"}),
	}
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}
