// ABOUTME: Prometheus collectors for tool calls and resource reads.
// ABOUTME: Implements the dispatcher's Observer and serves the /metrics exposition.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "widget_gateway"

// Metrics owns a private registry so tests and multiple gateways in one
// process do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	resourceReads *prometheus.CounterVec
}

// New creates the collectors and registers them along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Time spent validating and running a tool.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		resourceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_reads_total",
			Help:      "Resource reads by uri and outcome.",
		}, []string{"uri", "outcome"}),
	}

	m.registry.MustRegister(
		m.toolCalls,
		m.toolDuration,
		m.resourceReads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveResourceRead records one resource read.
func (m *Metrics) ObserveResourceRead(uri, outcome string) {
	m.resourceReads.WithLabelValues(uri, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for callers adding collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
