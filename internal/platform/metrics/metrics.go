package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AttemptsStarted   prometheus.Counter
	MatchOutcomes     *prometheus.CounterVec
	Identifications   prometheus.Counter
	SessionsIssued    prometheus.Counter
	AppraisersCreated prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on the given registerer. Tests pass a fresh
// registry to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AttemptsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "appraiser_gateway_attempts_started_total",
			Help: "Total number of identification attempts started",
		}),
		MatchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "appraiser_gateway_match_outcomes_total",
			Help: "Biometric match outcomes by kind",
		}, []string{"outcome"}),
		Identifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "appraiser_gateway_identifications_total",
			Help: "Total number of successful appraiser identifications",
		}),
		SessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "appraiser_gateway_sessions_issued_total",
			Help: "Total number of appraisal sessions issued",
		}),
		AppraisersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "appraiser_gateway_appraisers_created_total",
			Help: "Total number of appraisers registered",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appraiser_gateway_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// ObserveMatchOutcome records a normalized biometric outcome kind.
func (m *Metrics) ObserveMatchOutcome(outcome string) {
	m.MatchOutcomes.WithLabelValues(outcome).Inc()
}
