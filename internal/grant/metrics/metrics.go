package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the grant module.
type Metrics struct {
	// Grants created by source type
	Created *prometheus.CounterVec

	// Consume outcomes by result ("exhausted", "rejected")
	ConsumeOutcome *prometheus.CounterVec

	// Duplicate-source creations resolved by returning the existing grant
	DuplicateSource prometheus.Counter
}

// New creates a new Metrics instance with all grant module metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gridconsent_grants_created_total",
			Help: "Total grants created by source type",
		}, []string{"source_type"}),

		ConsumeOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gridconsent_grant_consume_total",
			Help: "Total consume attempts by outcome",
		}, []string{"outcome"}),

		DuplicateSource: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gridconsent_grant_duplicate_source_total",
			Help: "Total creations that found an existing grant for the same source",
		}),
	}
}

// IncrementCreated records a newly created grant.
func (m *Metrics) IncrementCreated(sourceType string) {
	if m != nil {
		m.Created.WithLabelValues(sourceType).Inc()
	}
}

// IncrementConsume records a consume attempt outcome.
func (m *Metrics) IncrementConsume(outcome string) {
	if m != nil {
		m.ConsumeOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementDuplicateSource records an idempotent create that reused a grant.
func (m *Metrics) IncrementDuplicateSource() {
	if m != nil {
		m.DuplicateSource.Inc()
	}
}
