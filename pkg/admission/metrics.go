package admission

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for the admission gate and the HTTP
// middleware in front of it. All methods are nil-safe so metrics stay
// optional.
//
// Labels are kept low-cardinality: decisions are labelled by policy source
// (route, tier, default), never by raw identifier.
type Metrics struct {
	// Gate checks
	checks        *prometheus.CounterVec
	storeFailures prometheus.Counter
	checkDuration prometheus.Histogram

	// Middleware decisions
	decisions *prometheus.CounterVec
	bypasses  prometheus.Counter
}

// NewMetrics creates admission metrics registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "turnstile",
				Subsystem: "admission",
				Name:      "checks_total",
				Help:      "Total number of admission checks performed",
			},
			[]string{"result"},
		),

		storeFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "turnstile",
				Subsystem: "admission",
				Name:      "store_failures_total",
				Help:      "Total number of entry store failures that caused fail-open admissions",
			},
		),

		checkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "turnstile",
				Subsystem: "admission",
				Name:      "check_duration_seconds",
				Help:      "Duration of admission checks in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "turnstile",
				Subsystem: "admission",
				Name:      "decisions_total",
				Help:      "Total number of gate decisions by policy source",
			},
			[]string{"source", "result"},
		),

		bypasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "turnstile",
				Subsystem: "admission",
				Name:      "bypasses_total",
				Help:      "Total number of requests that skipped the gate via the bypass list",
			},
		),
	}

	reg.MustRegister(m.checks, m.storeFailures, m.checkDuration, m.decisions, m.bypasses)
	return m
}

// RecordCheck records one gate check and its duration.
func (m *Metrics) RecordCheck(allowed bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	m.checks.WithLabelValues(result).Inc()
	m.checkDuration.Observe(duration.Seconds())
}

// RecordStoreFailure records a fail-open admission caused by a store fault.
func (m *Metrics) RecordStoreFailure() {
	if m == nil {
		return
	}
	m.storeFailures.Inc()
}

// RecordDecision records a middleware decision by policy source.
func (m *Metrics) RecordDecision(source string, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	m.decisions.WithLabelValues(source, result).Inc()
}

// RecordBypass records a request that skipped the gate.
func (m *Metrics) RecordBypass() {
	if m == nil {
		return
	}
	m.bypasses.Inc()
}
