package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

// MemoryResult is one hybrid-recall hit surfaced to the memory_search tool.
type MemoryResult struct {
	Content    string  `json:"content"`
	Category   string  `json:"category,omitempty"`
	Importance float64 `json:"importance,omitempty"`
	Score      float64 `json:"score"`
}

// MemoryStore is the narrow seam the Engram engine implements for the
// memory builtin (store/search, spec §4.F).
type MemoryStore interface {
	StoreMemory(ctx context.Context, agentID, content, category string, importance float64) (string, error)
	SearchMemory(ctx context.Context, agentID, query string, topK int) ([]MemoryResult, error)
}

// MemoryTool implements the store/search memory builtin.
type MemoryTool struct{ store MemoryStore }

func NewMemoryTool(store MemoryStore) *MemoryTool { return &MemoryTool{store: store} }

func (t *MemoryTool) Name() string { return "memory" }

func (t *MemoryTool) Description() string {
	return "Store or search this agent's long-term memory."
}

// MemoryToolParams is the memory builtin's tool-call argument shape.
type MemoryToolParams struct {
	Action     string  `json:"action" jsonschema:"required,description=Action: store, search."`
	Content    string  `json:"content" jsonschema:"description=Memory content (required for store)."`
	Category   string  `json:"category" jsonschema:"description=Category label (store only)."`
	Importance float64 `json:"importance" jsonschema:"description=Importance 0..1 (store only)."`
	Query      string  `json:"query" jsonschema:"description=Search query (required for search)."`
	TopK       int     `json:"top_k" jsonschema:"minimum=1,description=Max results (search only, default 5)."`
}

func (t *MemoryTool) Schema() json.RawMessage {
	return structSchema[MemoryToolParams]()
}

func (t *MemoryTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	agentID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	var input MemoryToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "store":
		if strings.TrimSpace(input.Content) == "" {
			return toolError("content is required"), nil
		}
		id, err := t.store.StoreMemory(ctx, agentID, input.Content, input.Category, input.Importance)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"id": id, "status": "stored"}), nil
	case "search":
		if strings.TrimSpace(input.Query) == "" {
			return toolError("query is required"), nil
		}
		topK := input.TopK
		if topK <= 0 {
			topK = 5
		}
		results, err := t.store.SearchMemory(ctx, agentID, input.Query, topK)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"results": results}), nil
	default:
		return toolError("action must be one of: store, search"), nil
	}
}
