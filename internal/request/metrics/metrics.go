package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the request module.
type Metrics struct {
	// Requests created by type
	Created *prometheus.CounterVec

	// Decisions by outcome ("accepted", "rejected", "expired")
	Decision *prometheus.CounterVec

	// End-to-end create latency, including party resolution
	CreateLatency prometheus.Histogram

	// Requests expired per sweep
	ExpiredPerSweep prometheus.Histogram
}

// New creates a new Metrics instance with all request module metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gridconsent_requests_created_total",
			Help: "Total authorization requests created by type",
		}, []string{"type"}),

		Decision: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gridconsent_request_decisions_total",
			Help: "Total request decisions by outcome",
		}, []string{"outcome"}),

		CreateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridconsent_request_create_duration_seconds",
			Help:    "Duration of request creation including party resolution",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		ExpiredPerSweep: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridconsent_requests_expired_per_sweep",
			Help:    "Number of requests marked expired per sweeper pass",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
		}),
	}
}

// IncrementCreated records a created request.
func (m *Metrics) IncrementCreated(requestType string) {
	if m != nil {
		m.Created.WithLabelValues(requestType).Inc()
	}
}

// IncrementDecision records a decision outcome.
func (m *Metrics) IncrementDecision(outcome string) {
	if m != nil {
		m.Decision.WithLabelValues(outcome).Inc()
	}
}

// ObserveCreateLatency records the duration of a create call.
func (m *Metrics) ObserveCreateLatency(d time.Duration) {
	if m != nil {
		m.CreateLatency.Observe(d.Seconds())
	}
}

// ObserveExpiredSweep records how many rows one sweeper pass expired.
func (m *Metrics) ObserveExpiredSweep(n int64) {
	if m != nil {
		m.ExpiredPerSweep.Observe(float64(n))
	}
}
