package providers

import (
	"testing"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected error when API key is missing")
	}
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Fatalf("unexpected name: %s", p.Name())
	}
	if len(p.Models()) == 0 {
		t.Fatal("expected a non-empty model list")
	}
}

func TestNewOpenAIProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Fatal("expected error when API key is missing")
	}
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.SupportsTools() {
		t.Fatal("expected openai provider to support tools")
	}
}

func TestConvertMessagesToAnthropicSkipsSystemRole(t *testing.T) {
	messages := []agent.CompletionMessage{
		{Role: "system", Content: "ignored"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}
	out, err := convertMessagesToAnthropic(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 converted messages, got %d", len(out))
	}
}

func TestConvertMessagesToAnthropicRejectsInvalidToolArguments(t *testing.T) {
	messages := []agent.CompletionMessage{
		{Role: "assistant", ToolCalls: []agent.ToolCallRequest{{ID: "tc1", Name: "echo", Arguments: []byte("not json")}}},
	}
	if _, err := convertMessagesToAnthropic(messages); err == nil {
		t.Fatal("expected error for invalid tool call arguments")
	}
}

func TestConvertMessagesToOpenAISplitsToolResultsIntoSeparateMessages(t *testing.T) {
	messages := []agent.CompletionMessage{
		{Role: "tool", ToolResults: []agent.ToolResultMessage{
			{ToolCallID: "tc1", Content: "result one"},
			{ToolCallID: "tc2", Content: "result two"},
		}},
	}
	out, err := convertMessagesToOpenAI(messages, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected one OpenAI message per tool result, got %d", len(out))
	}
	if out[0].ToolCallID != "tc1" || out[1].ToolCallID != "tc2" {
		t.Fatalf("unexpected tool call ids: %+v", out)
	}
}

func TestConvertMessagesToOpenAIPrependsSystemMessage(t *testing.T) {
	out, err := convertMessagesToOpenAI(nil, "be helpful")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Role != "system" || out[0].Content != "be helpful" {
		t.Fatalf("expected single system message, got %+v", out)
	}
}

func TestConvertToolsToOpenAIFallsBackToEmptySchema(t *testing.T) {
	tools := []agent.ToolDefinition{{Name: "noop", Description: "does nothing"}}
	out := convertToolsToOpenAI(tools)
	if len(out) != 1 || out[0].Function.Name != "noop" {
		t.Fatalf("unexpected conversion: %+v", out)
	}
}

func TestConvertMessagesToBedrockSkipsEmptyMessages(t *testing.T) {
	messages := []agent.CompletionMessage{
		{Role: "user", Content: ""},
		{Role: "user", Content: "hi"},
	}
	out, err := convertMessagesToBedrock(messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected empty message to be dropped, got %d messages", len(out))
	}
}

func TestDefaultRetryConfigBackoffPolicy(t *testing.T) {
	cfg := DefaultRetryConfig()
	policy := cfg.backoffPolicy()
	if policy.InitialMs != float64(time.Second.Milliseconds()) {
		t.Fatalf("unexpected initial backoff: %v", policy.InitialMs)
	}
}

func TestModelOrDefaultAndMaxTokensOrDefault(t *testing.T) {
	if got := modelOrDefault("", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := modelOrDefault("explicit", "fallback"); got != "explicit" {
		t.Fatalf("expected explicit, got %s", got)
	}
	if got := maxTokensOrDefault(0, 100); got != 100 {
		t.Fatalf("expected fallback 100, got %d", got)
	}
	if got := maxTokensOrDefault(50, 100); got != 50 {
		t.Fatalf("expected explicit 50, got %d", got)
	}
}
