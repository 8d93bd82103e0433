package unify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors. They are write-only: the
// algorithm never reads them. One Metrics may be shared by engines running
// concurrently.
type Metrics struct {
	calls    prometheus.Counter
	outcomes *prometheus.CounterVec
	rules    *prometheus.CounterVec
	memoHits prometheus.Counter
	steps    prometheus.Histogram
}

// NewMetrics registers the collectors with reg. A nil reg creates
// unregistered collectors. Registering twice with the same reg panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		calls: f.NewCounter(prometheus.CounterOpts{
			Name: "evarconv_unify_calls_total",
			Help: "Total top-level unification calls",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evarconv_unify_outcomes_total",
			Help: "Top-level unification calls by outcome",
		}, []string{"outcome"}), // unified, failed, fallback, fuel, invariant, cancelled
		rules: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evarconv_rule_applications_total",
			Help: "Successful rule applications by rule",
		}, []string{"rule"}),
		memoHits: f.NewCounter(prometheus.CounterOpts{
			Name: "evarconv_memo_hits_total",
			Help: "Sub-problems answered from the session failure cache",
		}),
		steps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "evarconv_unify_steps",
			Help:    "Fuel spent per top-level call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
		}),
	}
}
