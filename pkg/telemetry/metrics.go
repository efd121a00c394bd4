// Package telemetry registers the Prometheus metrics shared by the agent,
// the tool dispatcher, the search gateway, the evaluation harness and the
// HTTP server. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paper_search"

// Session outcomes.
const (
	OutcomeReported    = "reported"
	OutcomeNoToolCalls = "no_tool_calls"
	OutcomeExhausted   = "exhausted"
	OutcomeError       = "error"
)

// Call statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Metrics struct {
	// sessionsTotal counts finished agent sessions by outcome.
	sessionsTotal *prometheus.CounterVec

	// sessionTurns records how many model turns a session used.
	sessionTurns prometheus.Histogram

	// toolCallsTotal counts dispatched tool calls by tool name and status.
	toolCallsTotal *prometheus.CounterVec

	toolDurationSeconds *prometheus.HistogramVec

	// searchDurationSeconds records store latency by mode: keyword, semantic or read.
	searchDurationSeconds *prometheus.HistogramVec

	evalQueriesTotal *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpDurationSeconds *prometheus.HistogramVec
}

// New registers every metric against reg. Pass a fresh prometheus.Registry
// in tests to keep them hermetic.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "sessions_total",
			Help:      "Agent sessions completed, partitioned by outcome.",
		}, []string{"outcome"}),

		sessionTurns: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "session_turns",
			Help:      "Model turns used per agent session.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),

		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Tool calls executed, partitioned by tool and status.",
		}, []string{"tool", "status"}),

		toolDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "duration_seconds",
			Help:      "Latency of individual tool calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		searchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Latency of paper store searches, partitioned by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),

		evalQueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "eval",
			Name:      "queries_total",
			Help:      "Evaluation queries processed, partitioned by status.",
		}, []string{"status"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests handled, partitioned by method, route and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}

func (m *Metrics) ObserveSession(outcome string, turns int) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(outcome).Inc()
	m.sessionTurns.Observe(float64(turns))
}

func (m *Metrics) ObserveToolCall(tool string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, status(err)).Inc()
	m.toolDurationSeconds.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSearch(mode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searchDurationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveEvalQuery(err error) {
	if m == nil {
		return
	}
	m.evalQueriesTotal.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) ObserveHTTP(method, handler, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, handler, code).Inc()
	m.httpDurationSeconds.WithLabelValues(method, handler).Observe(elapsed.Seconds())
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
