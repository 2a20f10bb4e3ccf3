package models

import "encoding/json"

// ToolDefinition describes a callable tool to the LLM. Names are namespaced:
// builtins use bare names; MCP tools use "mcp_{server_id}_{tool_name}";
// community skills prefix with the provider id (spec §3).
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolSource ranks where a ToolDefinition came from, used to resolve name
// collisions: builtin < skill < mcp (spec §4.B).
type ToolSource int

const (
	SourceBuiltin ToolSource = iota
	SourceSkill
	SourceMCP
)
