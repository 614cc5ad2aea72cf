// Package metrics defines the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's collectors. All collectors are registered
// against the registerer passed to New, so callers decide exposure.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	NodeExecutions *prometheus.CounterVec
	NodeDuration   *prometheus.HistogramVec
}

// New registers and returns the engine collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgrid",
			Name:      "runs_total",
			Help:      "Workflow runs by terminal status.",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowgrid",
			Name:      "run_duration_seconds",
			Help:      "End-to-end workflow run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		NodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowgrid",
			Name:      "node_executions_total",
			Help:      "Node executions by node type and terminal status.",
		}, []string{"type", "status"}),
		NodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowgrid",
			Name:      "node_duration_seconds",
			Help:      "Per-node execution duration by node type.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"type"}),
	}
}

// Nop returns collectors registered against a throwaway registry, for
// callers that do not expose metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
