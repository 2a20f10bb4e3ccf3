package agent

import "context"

// LLMProvider is the unified interface every backend (Anthropic, OpenAI,
// Bedrock, ...) implements so the Agent Loop never special-cases a vendor.
type LLMProvider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Name() string
	Models() []Model
	SupportsTools() bool
}

// CompletionRequest is the provider-agnostic shape of a single round's LLM
// call: system prompt, full message history, and the tool list the Tool
// Registry assembled for this round (§4.B).
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	Tools     []ToolDefinition
	MaxTokens int
}

// CompletionMessage is a provider-agnostic chat message.
type CompletionMessage struct {
	Role        string
	Content     string
	ToolCalls   []ToolCallRequest
	ToolResults []ToolResultMessage
}

// ToolCallRequest is a single tool invocation the model asked for.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments []byte
}

// ToolResultMessage carries a tool's output back into message history.
type ToolResultMessage struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// ToolDefinition is what the registry hands the provider: name, description,
// and JSON Schema parameters (spec §4.B).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []byte
}

// CompletionResponse is the full (non-streaming, from the loop's point of
// view) result of one provider call, including usage for cost accounting.
type CompletionResponse struct {
	Text         string
	ToolCalls    []ToolCallRequest
	InputTokens  int
	OutputTokens int
	CacheReadTokens   int
	CacheCreateTokens int
}

// Model describes one model a provider exposes.
type Model struct {
	ID          string
	ContextSize int
}
