package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics centralizes Prometheus collectors for the agent loop, tool
// dispatch, retrieval quality, and cost accounting (spec §7).
type Metrics struct {
	// AgentRounds counts Agent Loop rounds by role and outcome.
	// Labels: role (chat|worker|boss), outcome (text|tool_call|max_rounds)
	AgentRounds *prometheus.CounterVec

	// LLMRequestDuration measures provider Complete() latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts provider calls by outcome.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, kind (input|output|cache_read|cache_create)
	LLMTokensUsed *prometheus.CounterVec

	// LLMCostUSD accumulates estimated spend (internal/usage.Tracker, spec §4.H).
	// Labels: provider, model, tenant_id
	LLMCostUSD *prometheus.CounterVec

	// ToolExecutionDuration measures dispatcher.Execute latency in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool dispatches by outcome.
	// Labels: tool_name, status (success|error|denied)
	ToolExecutionCounter *prometheus.CounterVec

	// RecallScore observes the cosine-similarity score of retrieved memories
	// and tools (internal/engram, internal/ragindex, spec §4.D, §4.L).
	// Labels: index (tool_rag|engram)
	RecallScore *prometheus.HistogramVec

	// RecallEmptyResults counts lookups that returned nothing, a proxy for
	// retrieval-quality degradation (spec §4.L).
	// Labels: index
	RecallEmptyResults *prometheus.CounterVec

	// ActiveSessions gauges in-flight sessions per channel.
	// Labels: channel
	ActiveSessions *prometheus.GaugeVec

	// TaskExecutions counts scheduled/event-triggered task runs (spec §4.J).
	// Labels: trigger (cron|event), status (completed|failed)
	TaskExecutions *prometheus.CounterVec
}

// NewMetrics constructs and registers every collector with Prometheus's
// default registry. Call once at startup.
func NewMetrics() *Metrics {
	return &Metrics{
		AgentRounds: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_agent_rounds_total",
				Help: "Agent Loop rounds by role and outcome",
			},
			[]string{"role", "outcome"},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_llm_request_duration_seconds",
				Help:    "LLM provider request latency",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_llm_requests_total",
				Help: "LLM provider requests by outcome",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_llm_tokens_total",
				Help: "LLM token consumption",
			},
			[]string{"provider", "model", "kind"},
		),
		LLMCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_llm_cost_usd_total",
				Help: "Estimated LLM spend in USD",
			},
			[]string{"provider", "model", "tenant_id"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_tool_execution_duration_seconds",
				Help:    "Tool dispatch latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_tool_executions_total",
				Help: "Tool dispatches by outcome",
			},
			[]string{"tool_name", "status"},
		),
		RecallScore: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentrt_recall_score",
				Help:    "Cosine-similarity score of retrieved memories/tools",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"index"},
		),
		RecallEmptyResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_recall_empty_results_total",
				Help: "Retrieval lookups returning zero results",
			},
			[]string{"index"},
		),
		ActiveSessions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentrt_active_sessions",
				Help: "In-flight sessions per channel",
			},
			[]string{"channel"},
		),
		TaskExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentrt_task_executions_total",
				Help: "Scheduled/event-triggered task runs",
			},
			[]string{"trigger", "status"},
		),
	}
}
