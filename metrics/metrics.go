// Package metrics exposes Prometheus instrumentation for the evaluation
// pipeline. Collectors are registered once against the default registry;
// applications scrape them through their own promhttp handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the framework's collectors so they can be passed around
// as one dependency and stubbed out in tests.
type Metrics struct {
	// EvaluationsTotal counts completed evaluation calls by outcome
	// ("success" or a failure kind).
	EvaluationsTotal *prometheus.CounterVec

	// EvaluationDuration observes end-to-end evaluation latency.
	EvaluationDuration prometheus.Histogram

	// CacheHits and CacheMisses count evaluation cache lookups.
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// CacheEvictions counts entries removed by LRU pressure or expiry.
	CacheEvictions prometheus.Counter

	// PoolExhausted counts acquires rejected at the per-type cap.
	PoolExhausted prometheus.Counter

	// ActiveContexts gauges the number of tracked contexts.
	ActiveContexts prometheus.Gauge

	// ActiveEvaluations gauges in-flight asynchronous evaluations.
	ActiveEvaluations prometheus.Gauge
}

// New registers the collectors with the default Prometheus registry and
// returns them. Call at most once per process; a second call panics on
// duplicate registration, which is the promauto contract.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors with a caller-supplied registerer.
// Tests pass a fresh prometheus.NewRegistry() to avoid cross-test
// duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "probmesh",
			Name:      "evaluations_total",
			Help:      "Completed evaluation calls by outcome.",
		}, []string{"outcome"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "probmesh",
			Name:      "evaluation_duration_seconds",
			Help:      "End-to-end evaluation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "probmesh",
			Name:      "cache_hits_total",
			Help:      "Evaluation cache hits.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "probmesh",
			Name:      "cache_misses_total",
			Help:      "Evaluation cache misses.",
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "probmesh",
			Name:      "cache_evictions_total",
			Help:      "Evaluation cache entries evicted or expired.",
		}),
		PoolExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "probmesh",
			Name:      "pool_exhausted_total",
			Help:      "Evaluator pool acquires rejected at the per-type cap.",
		}),
		ActiveContexts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "probmesh",
			Name:      "active_contexts",
			Help:      "Currently tracked evaluation contexts.",
		}),
		ActiveEvaluations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "probmesh",
			Name:      "active_evaluations",
			Help:      "In-flight asynchronous evaluations.",
		}),
	}
}

// RecordOutcome increments the evaluations counter for a success or the
// given failure-kind label.
func (m *Metrics) RecordOutcome(success bool, failureKind string) {
	if m == nil {
		return
	}
	if success {
		m.EvaluationsTotal.WithLabelValues("success").Inc()
		return
	}
	m.EvaluationsTotal.WithLabelValues(failureKind).Inc()
}
