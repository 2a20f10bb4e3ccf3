package orchestrator

import (
	"context"

	"github.com/nexuscore/agentrt/internal/agent/builtins"
	"github.com/nexuscore/agentrt/pkg/models"
)

// Bus adapts Store to builtins.AgentMessageBus, the seam the agent_message
// and message_broadcast builtins dispatch through.
type Bus struct{ store Store }

// NewBus wraps store as a builtins.AgentMessageBus.
func NewBus(store Store) *Bus { return &Bus{store: store} }

var _ builtins.AgentMessageBus = (*Bus)(nil)

func (b *Bus) SendAgentMessage(ctx context.Context, from, to, content string) (string, error) {
	msg := &models.AgentMessage{From: from, To: to, Content: content}
	if err := b.store.SendAgentMessage(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (b *Bus) BroadcastAgentMessage(ctx context.Context, from, content string) (string, error) {
	msg := &models.AgentMessage{From: from, To: models.BroadcastRecipient, Content: content}
	if err := b.store.SendAgentMessage(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}
