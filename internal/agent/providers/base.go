// Package providers implements the agent.LLMProvider adapters: Anthropic,
// OpenAI, and Bedrock, each translating the Agent Loop's provider-agnostic
// CompletionRequest into the vendor SDK's request shape and back.
package providers

import (
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/apperr"
)

// RetryConfig configures the shared exponential-backoff retry every
// provider adapter applies around its underlying SDK call. Only BaseDelay
// reaches the backoff policy; the retry count is apperr.MaxRetries, and
// MaxRetries here only decides whether the defaults are applied.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryConfig returns MaxRetries 3 and a 1s base delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Second}
}

func (c RetryConfig) backoffPolicy() apperr.BackoffPolicy {
	return apperr.BackoffPolicy{
		InitialMs: float64(c.BaseDelay.Milliseconds()),
		MaxMs:     30000,
		Factor:    2,
		Jitter:    0.1,
	}
}

func modelOrDefault(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

func maxTokensOrDefault(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}

// baseModel returns the Model metadata shared across every provider's
// Models() listing helper.
func baseModel(id string, contextSize int) agent.Model {
	return agent.Model{ID: id, ContextSize: contextSize}
}
