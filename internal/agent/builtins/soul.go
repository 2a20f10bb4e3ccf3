package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

// SoulStore persists per-agent soul files (agent_files table: IDENTITY,
// SOUL, USER, AGENTS, TOOLS, and arbitrary extras).
type SoulStore interface {
	ReadSoulFile(ctx context.Context, agentID, fileName string) (string, error)
	WriteSoulFile(ctx context.Context, agentID, fileName, content string) error
	ListSoulFiles(ctx context.Context, agentID string) ([]string, error)
}

// SoulTool reads, writes, and lists an agent's soul files. Identifies the
// acting agent via the agentID the dispatcher passes through Execute's
// context by convention: callers must wrap ctx with WithAgentID.
type SoulTool struct{ store SoulStore }

func NewSoulTool(store SoulStore) *SoulTool { return &SoulTool{store: store} }

func (t *SoulTool) Name() string { return "soul" }

func (t *SoulTool) Description() string {
	return "Read, write, or list this agent's soul files (IDENTITY, SOUL, USER, AGENTS, TOOLS, or custom)."
}

// SoulToolParams is the soul builtin's tool-call argument shape.
type SoulToolParams struct {
	Action   string `json:"action" jsonschema:"required,description=Action: read, write, list."`
	FileName string `json:"file_name" jsonschema:"description=Soul file name (required for read/write)."`
	Content  string `json:"content" jsonschema:"description=Content to write (required for write)."`
}

func (t *SoulTool) Schema() json.RawMessage {
	return structSchema[SoulToolParams]()
}

func (t *SoulTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	agentID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	var input SoulToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "read":
		if input.FileName == "" {
			return toolError("file_name is required"), nil
		}
		content, err := t.store.ReadSoulFile(ctx, agentID, input.FileName)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"file_name": input.FileName, "content": content}), nil
	case "write":
		if input.FileName == "" {
			return toolError("file_name is required"), nil
		}
		if err := t.store.WriteSoulFile(ctx, agentID, input.FileName, input.Content); err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"file_name": input.FileName, "status": "written"}), nil
	case "list":
		files, err := t.store.ListSoulFiles(ctx, agentID)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"files": files}), nil
	default:
		return toolError("action must be one of: read, write, list"), nil
	}
}
