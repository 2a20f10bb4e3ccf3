// Package agent implements the Tool Registry, Tool Dispatcher, and Agent
// Loop: the central iterator that drives a conversation between a session's
// message history, an LLM provider, and the tools available to an agent.
package agent

import (
	"context"
	"encoding/json"
)

// Tool is the interface every builtin, skill, and MCP-backed tool
// implements so the registry and dispatcher can treat them uniformly.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the normalized output of a tool execution. Dispatcher.Execute
// never returns a Go error for a failing tool call; failures are carried as
// Success=false with a human-readable reason in Output.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// ToolSourceKind records which layer of the dispatch chain owns a tool name,
// used to break name collisions by precedence (builtin < skill < MCP).
type ToolSourceKind int

const (
	SourceBuiltin ToolSourceKind = iota
	SourceSkill
	SourceMCP
)
