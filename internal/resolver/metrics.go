package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes
const (
	outcomeCacheHit  = "cache_hit"
	outcomeAccepted  = "accepted"
	outcomeExhausted = "exhausted"
	outcomeInvalid   = "invalid"
	outcomeCanceled  = "canceled"
)

// Source attempt outcomes
const (
	attemptAccepted           = "accepted"
	attemptRejected           = "rejected"
	attemptNotFound           = "not_found"
	attemptMissingCredentials = "missing_credentials"
	attemptTimeout            = "timeout"
	attemptError              = "error"
)

// Metrics holds the resolver's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	resolutions  *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics registers the collectors on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sweetguard_resolutions_total",
			Help: "Barcode resolutions by outcome.",
		}, []string{"outcome"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sweetguard_source_attempts_total",
			Help: "Source lookups by source and outcome.",
		}, []string{"source", "outcome"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sweetguard_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, expired, error).",
		}, []string{"result"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweetguard_resolution_duration_seconds",
			Help:    "Wall time of a resolution including cache access and source calls.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) resolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) attempt(source, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) cacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) observe(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}
