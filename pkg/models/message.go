package models

import (
	"encoding/json"
	"time"
)

// Role is the author type of a persisted message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is what an LLM emits to request a tool execution.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
	Success    bool   `json:"success"`
}

// Session is a conversation thread for one agent.
//
// Key is an optional external correlation key (e.g. "agent-1:discord:98765")
// used by the Channel Agent Runner to map an inbound channel thread onto a
// session idempotently; core agent-loop sessions created directly (not via
// a channel) leave it empty.
type Session struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Key          string    `json:"key,omitempty"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single persisted turn within a Session.
//
// Invariant: every tool message's ToolCallID must correspond to a prior
// assistant message's tool-call entry in the same session (spec §3, §4.H).
type Message struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
