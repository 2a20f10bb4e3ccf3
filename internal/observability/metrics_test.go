package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewMetrics() registers against the default global registry, so tests
// exercise isolated collectors of the same shape instead of calling it
// directly (duplicate registration across test functions would panic).

func TestToolExecutionCounterLabelsByOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_tool_executions_total", Help: "test"},
		[]string{"tool_name", "status"},
	)
	registry.MustRegister(counter)

	counter.WithLabelValues("web_search", "success").Inc()
	counter.WithLabelValues("web_search", "success").Inc()
	counter.WithLabelValues("web_search", "error").Inc()

	expected := `
		# HELP test_tool_executions_total test
		# TYPE test_tool_executions_total counter
		test_tool_executions_total{status="error",tool_name="web_search"} 1
		test_tool_executions_total{status="success",tool_name="web_search"} 2
	`
	if err := testutil.CollectAndCompare(counter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestRecallScoreHistogramObserves(t *testing.T) {
	registry := prometheus.NewRegistry()
	hist := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_recall_score", Help: "test", Buckets: []float64{0.5, 1.0}},
		[]string{"index"},
	)
	registry.MustRegister(hist)

	hist.WithLabelValues("tool_rag").Observe(0.9)
	if count := testutil.CollectAndCount(hist); count != 1 {
		t.Errorf("expected 1 label combination, got %d", count)
	}
}

func TestNewMetricsReturnsFullyPopulatedStruct(t *testing.T) {
	m := NewMetrics()
	if m.AgentRounds == nil || m.LLMRequestDuration == nil || m.ToolExecutionCounter == nil ||
		m.RecallScore == nil || m.ActiveSessions == nil || m.TaskExecutions == nil {
		t.Fatal("expected NewMetrics() to populate every collector")
	}
}
