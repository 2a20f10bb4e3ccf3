package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

// AgentMessageBus is the narrow seam the orchestrator's project bus
// implements for agent-to-agent messaging (spec §4.I, broadcast visible to
// all agents).
type AgentMessageBus interface {
	SendAgentMessage(ctx context.Context, from, to, content string) (string, error)
	BroadcastAgentMessage(ctx context.Context, from, content string) (string, error)
}

// AgentMessageTool sends a direct message to another agent. Not destructive
// — only broadcast is (policy.IsDestructive("message_broadcast")).
type AgentMessageTool struct{ bus AgentMessageBus }

func NewAgentMessageTool(bus AgentMessageBus) *AgentMessageTool { return &AgentMessageTool{bus: bus} }

func (t *AgentMessageTool) Name() string        { return "agent_message" }
func (t *AgentMessageTool) Description() string { return "Send a direct message to another agent." }
// AgentMessageToolParams is agent_message's tool-call argument shape.
type AgentMessageToolParams struct {
	To      string `json:"to" jsonschema:"required,description=Recipient agent id."`
	Content string `json:"content" jsonschema:"required,description=Message content."`
}

func (t *AgentMessageTool) Schema() json.RawMessage {
	return structSchema[AgentMessageToolParams]()
}

func (t *AgentMessageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	from, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	var input AgentMessageToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.To) == "" {
		return toolError("to is required"), nil
	}
	id, err := t.bus.SendAgentMessage(ctx, from, input.To, input.Content)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return toolOK(map[string]any{"id": id, "status": "sent"}), nil
}

// MessageBroadcastTool sends a message visible to every agent. Destructive
// (gated by policy.IsDestructive("message_broadcast")).
type MessageBroadcastTool struct{ bus AgentMessageBus }

func NewMessageBroadcastTool(bus AgentMessageBus) *MessageBroadcastTool {
	return &MessageBroadcastTool{bus: bus}
}

func (t *MessageBroadcastTool) Name() string { return "message_broadcast" }
func (t *MessageBroadcastTool) Description() string {
	return "Broadcast a message visible to all agents. Requires approval."
}
// MessageBroadcastToolParams is message_broadcast's tool-call argument shape.
type MessageBroadcastToolParams struct {
	Content string `json:"content" jsonschema:"required,description=Message content."`
}

func (t *MessageBroadcastTool) Schema() json.RawMessage {
	return structSchema[MessageBroadcastToolParams]()
}

func (t *MessageBroadcastTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	from, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	var input MessageBroadcastToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Content) == "" {
		return toolError("content is required"), nil
	}
	id, err := t.bus.BroadcastAgentMessage(ctx, from, input.Content)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return toolOK(map[string]any{"id": id, "status": "broadcast"}), nil
}
