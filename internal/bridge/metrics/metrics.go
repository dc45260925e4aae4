// Package metrics collects and exposes Prometheus metrics for the
// authentication pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the recording interface consumed by the pipeline and the
// reconciler, so they never depend on prometheus directly.
type Recorder interface {
	RecordDecision(outcome string, source string)
	RecordRemoteVerification(ok bool, duration time.Duration)
	RecordReconciliation(created bool)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	decisions     *prometheus.CounterVec
	remoteResult  *prometheus.CounterVec
	remoteLatency prometheus.Histogram
	reconciles    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_login_decisions_total",
			Help: "Terminal login decisions by outcome and deciding source.",
		}, []string{"outcome", "source"}),
		remoteResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_remote_verifications_total",
			Help: "Remote credential verification calls by result.",
		}, []string{"result"}),
		remoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_remote_verification_seconds",
			Help:    "Latency of remote credential verification calls.",
			Buckets: prometheus.DefBuckets,
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_reconciliations_total",
			Help: "Identity reconciliations by operation (create or update).",
		}, []string{"op"}),
	}

	reg.MustRegister(c.decisions, c.remoteResult, c.remoteLatency, c.reconciles)
	return c
}

func (c *Collector) RecordDecision(outcome string, source string) {
	c.decisions.WithLabelValues(outcome, source).Inc()
}

func (c *Collector) RecordRemoteVerification(ok bool, duration time.Duration) {
	result := "failure"
	if ok {
		result = "success"
	}
	c.remoteResult.WithLabelValues(result).Inc()
	c.remoteLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordReconciliation(created bool) {
	op := "update"
	if created {
		op = "create"
	}
	c.reconciles.WithLabelValues(op).Inc()
}

// Handler returns the /metrics HTTP handler for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Noop is a Recorder that records nothing; handy default for tests.
type Noop struct{}

func (Noop) RecordDecision(string, string)                {}
func (Noop) RecordRemoteVerification(bool, time.Duration) {}
func (Noop) RecordReconciliation(bool)                    {}
