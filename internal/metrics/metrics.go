// Package metrics exposes Prometheus instrumentation for the
// orchestrator loop: steps per run, tool invocations and latency by
// tool name, LLM stream errors by provider category, and active
// session count.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/histogram/gauge this service records. A
// nil *Metrics is safe to call methods on (all become no-ops), so
// callers that haven't wired metrics don't need nil checks at every
// call site.
type Metrics struct {
	registry *prometheus.Registry

	stepsPerRun    prometheus.Histogram
	runsTotal      *prometheus.CounterVec
	activeSessions prometheus.Gauge

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	toolErrors   *prometheus.CounterVec

	llmErrors *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New builds and registers every metric under the "sentinel" namespace.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		stepsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "orchestrator",
			Name:      "steps_per_run",
			Help:      "Number of ReAct steps taken before a run reached a terminal state",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of orchestrator runs by terminal outcome",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of sessions currently known to the store",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total number of tool invocations by tool name",
		}, []string{"tool"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool invocation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"tool"}),
		toolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "tool",
			Name:      "errors_total",
			Help:      "Total number of tool invocation failures by tool name and error category",
		}, []string{"tool", "category"}),
		llmErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total number of LLM stream errors by category",
		}, []string{"provider", "category"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status class",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.stepsPerRun, m.runsTotal, m.activeSessions,
		m.toolCalls, m.toolDuration, m.toolErrors, m.llmErrors,
		m.httpRequests, m.httpDuration,
	)
	return m
}

func (m *Metrics) RecordRun(steps int, outcome string) {
	if m == nil {
		return
	}
	m.stepsPerRun.Observe(float64(steps))
	m.runsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) RecordToolCall(tool string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) RecordToolError(tool, category string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(tool, category).Inc()
}

func (m *Metrics) RecordLLMError(provider, category string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(provider, category).Inc()
}

func (m *Metrics) RecordHTTPRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns the HTTP handler exposing the metrics registry for
// Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
