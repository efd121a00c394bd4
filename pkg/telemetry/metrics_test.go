package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue gathers reg and returns the counter matching name and labels.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestObserveToolCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveToolCall("search", nil, 10*time.Millisecond)
	m.ObserveToolCall("search", errors.New("boom"), time.Millisecond)
	m.ObserveToolCall("read", nil, time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, reg, "paper_search_tools_calls_total", map[string]string{"tool": "search", "status": StatusOK}))
	assert.Equal(t, 1.0, counterValue(t, reg, "paper_search_tools_calls_total", map[string]string{"tool": "search", "status": StatusError}))
	assert.Equal(t, 1.0, counterValue(t, reg, "paper_search_tools_calls_total", map[string]string{"tool": "read", "status": StatusOK}))
}

func TestObserveSession(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSession(OutcomeReported, 3)
	m.ObserveSession(OutcomeExhausted, 10)

	assert.Equal(t, 1.0, counterValue(t, reg, "paper_search_agent_sessions_total", map[string]string{"outcome": OutcomeReported}))
	assert.Equal(t, 1.0, counterValue(t, reg, "paper_search_agent_sessions_total", map[string]string{"outcome": OutcomeExhausted}))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSession(OutcomeError, 1)
		m.ObserveToolCall("search", nil, 0)
		m.ObserveSearch("keyword", 0)
		m.ObserveEvalQuery(nil)
		m.ObserveHTTP("GET", "/health", "200", 0)
	})
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
