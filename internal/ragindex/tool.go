package ragindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Output: message, Success: false}
	}
	return &agent.ToolResult{Output: string(payload), Success: false}
}

func toolOK(v any) *agent.ToolResult {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err))
	}
	return &agent.ToolResult{Output: string(payload), Success: true}
}

// RequestToolsTool is the dispatcher-exposed request_tools(query, domain?)
// control tool (spec §4.D). It is not in internal/agent/registry.go's
// WorkerControlTools or BossControlTools, so an agent's capability filter
// applies to it like any other tool.
type RequestToolsTool struct{ index *Index }

func NewRequestToolsTool(index *Index) *RequestToolsTool {
	return &RequestToolsTool{index: index}
}

func (t *RequestToolsTool) Name() string { return "request_tools" }
func (t *RequestToolsTool) Description() string {
	return "Resolve additional tools by search query or domain tag (email, trading, web, squads, memory, system, ...)."
}
func (t *RequestToolsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Free-text description of the capability needed."},
			"domain": {"type": "string", "description": "Curated domain tag; returns every tool tagged for it instead of a similarity search."}
		}
	}`)
}

func (t *RequestToolsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Query  string `json:"query"`
		Domain string `json:"domain"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	if strings.TrimSpace(input.Query) == "" && strings.TrimSpace(input.Domain) == "" {
		return toolError("query or domain is required"), nil
	}

	loaded, _ := agent.LoadedToolsFromContext(ctx)
	tools, err := t.index.RequestTools(ctx, input.Query, input.Domain, loaded)
	if err != nil {
		return toolError(err.Error()), nil
	}

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name()
	}
	return toolOK(map[string]any{"tools": names}), nil
}
