package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

// AgentSummary is the directory entry surfaced by the agents builtin.
type AgentSummary struct {
	ID        string `json:"agent_id"`
	Role      string `json:"role"`
	Specialty string `json:"specialty,omitempty"`
}

// AgentDirectory is the narrow seam the session store implements for the
// agents builtin (roster introspection, not creation — that is a
// boss-only control tool in internal/orchestrator).
type AgentDirectory interface {
	ListAgents(ctx context.Context) ([]AgentSummary, error)
	GetAgent(ctx context.Context, agentID string) (*AgentSummary, error)
}

// AgentsTool lists known agents and looks one up by id.
type AgentsTool struct{ directory AgentDirectory }

func NewAgentsTool(directory AgentDirectory) *AgentsTool { return &AgentsTool{directory: directory} }

func (t *AgentsTool) Name() string        { return "agents" }
func (t *AgentsTool) Description() string { return "List known agents or look one up by id." }
// AgentsToolParams is the agents builtin's tool-call argument shape.
type AgentsToolParams struct {
	Action  string `json:"action" jsonschema:"required,description=Action: list, get."`
	AgentID string `json:"agent_id" jsonschema:"description=Agent id (required for get)."`
}

func (t *AgentsTool) Schema() json.RawMessage {
	return structSchema[AgentsToolParams]()
}

func (t *AgentsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input AgentsToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "list":
		agents, err := t.directory.ListAgents(ctx)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"agents": agents}), nil
	case "get":
		if strings.TrimSpace(input.AgentID) == "" {
			return toolError("agent_id is required"), nil
		}
		a, err := t.directory.GetAgent(ctx, input.AgentID)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(a), nil
	default:
		return toolError("action must be one of: list, get"), nil
	}
}
