package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

// SkillInfo describes a loadable skill (module providing its own tools and
// a block of system-prompt instructions, spec §4.H system prompt section).
type SkillInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Loaded      bool   `json:"loaded"`
}

// SkillProvider is the narrow seam the skills subsystem implements for the
// skills builtin.
type SkillProvider interface {
	ListSkills(ctx context.Context, agentID string) ([]SkillInfo, error)
}

// SkillsTool lists the skills available to the acting agent.
type SkillsTool struct{ provider SkillProvider }

func NewSkillsTool(provider SkillProvider) *SkillsTool { return &SkillsTool{provider: provider} }

func (t *SkillsTool) Name() string        { return "skills" }
func (t *SkillsTool) Description() string { return "List skills available to this agent." }
// SkillsToolParams is the skills builtin's tool-call argument shape — empty,
// since listing takes no arguments.
type SkillsToolParams struct{}

func (t *SkillsTool) Schema() json.RawMessage {
	return structSchema[SkillsToolParams]()
}

func (t *SkillsTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	agentID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	skills, err := t.provider.ListSkills(ctx, agentID)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return toolOK(map[string]any{"skills": skills}), nil
}

// SkillOutputStore records a skill's structured output for the session
// (skill_state table, spec §4.G).
type SkillOutputStore interface {
	RecordSkillOutput(ctx context.Context, agentID, skillID, content string) error
}

// SkillOutputTool lets a skill's tool implementation record its result.
type SkillOutputTool struct{ store SkillOutputStore }

func NewSkillOutputTool(store SkillOutputStore) *SkillOutputTool {
	return &SkillOutputTool{store: store}
}

func (t *SkillOutputTool) Name() string        { return "skill_output" }
func (t *SkillOutputTool) Description() string { return "Record a skill's structured output for this session." }
// SkillOutputToolParams is skill_output's tool-call argument shape.
type SkillOutputToolParams struct {
	SkillID string `json:"skill_id" jsonschema:"required,description=Skill identifier."`
	Content string `json:"content" jsonschema:"required,description=Output content to record."`
}

func (t *SkillOutputTool) Schema() json.RawMessage {
	return structSchema[SkillOutputToolParams]()
}

func (t *SkillOutputTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	agentID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	var input SkillOutputToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.SkillID) == "" {
		return toolError("skill_id is required"), nil
	}
	if err := t.store.RecordSkillOutput(ctx, agentID, input.SkillID, input.Content); err != nil {
		return toolError(err.Error()), nil
	}
	return toolOK(map[string]any{"status": "recorded"}), nil
}

// SkillStorageStore is the narrow seam for a skill's persistent key/value
// scratch space (skill_storage(skill_id, key, value), spec §4.G).
type SkillStorageStore interface {
	GetSkillValue(ctx context.Context, skillID, key string) (string, bool, error)
	SetSkillValue(ctx context.Context, skillID, key, value string) error
}

// SkillStorageTool gets/sets a skill's persistent key/value pairs.
type SkillStorageTool struct{ store SkillStorageStore }

func NewSkillStorageTool(store SkillStorageStore) *SkillStorageTool {
	return &SkillStorageTool{store: store}
}

func (t *SkillStorageTool) Name() string        { return "skill_storage" }
func (t *SkillStorageTool) Description() string { return "Get or set a skill's persistent key/value storage." }
// SkillStorageToolParams is skill_storage's tool-call argument shape.
type SkillStorageToolParams struct {
	Action  string `json:"action" jsonschema:"required,description=Action: get, set."`
	SkillID string `json:"skill_id" jsonschema:"required,description=Skill identifier."`
	Key     string `json:"key" jsonschema:"required,description=Storage key."`
	Value   string `json:"value" jsonschema:"description=Value to set (set only)."`
}

func (t *SkillStorageTool) Schema() json.RawMessage {
	return structSchema[SkillStorageToolParams]()
}

func (t *SkillStorageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input SkillStorageToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.SkillID) == "" || strings.TrimSpace(input.Key) == "" {
		return toolError("skill_id and key are required"), nil
	}
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "get":
		value, found, err := t.store.GetSkillValue(ctx, input.SkillID, input.Key)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"value": value, "found": found}), nil
	case "set":
		if err := t.store.SetSkillValue(ctx, input.SkillID, input.Key, input.Value); err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"status": "set"}), nil
	default:
		return toolError("action must be one of: get, set"), nil
	}
}
