package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the document signing pipeline.
type Metrics struct {
	// Contracts generated
	Generated prometheus.Counter

	// Contracts signed end to end
	Signed prometheus.Counter

	// External signer call failures
	SignerFailures prometheus.Counter
}

// New creates a new Metrics instance with all document module metrics registered.
func New() *Metrics {
	return &Metrics{
		Generated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gridconsent_documents_generated_total",
			Help: "Total contract documents generated",
		}),

		Signed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gridconsent_documents_signed_total",
			Help: "Total contract documents signed",
		}),

		SignerFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gridconsent_signer_failures_total",
			Help: "Total external signer call failures",
		}),
	}
}

// IncrementGenerated records a generated contract.
func (m *Metrics) IncrementGenerated() {
	if m != nil {
		m.Generated.Inc()
	}
}

// IncrementSigned records a completed signing round.
func (m *Metrics) IncrementSigned() {
	if m != nil {
		m.Signed.Inc()
	}
}

// IncrementSignerFailure records a failed external signer call.
func (m *Metrics) IncrementSignerFailure() {
	if m != nil {
		m.SignerFailures.Inc()
	}
}
