// Package channelrunner implements the Channel Agent Runner (spec §4.K):
// the shared facade every inbound-channel bridge calls to invoke the core
// agent loop, so Discord/Telegram/Slack/Mattermost/Nostr adapters never
// touch internal/agent directly.
package channelrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/apperr"
	"github.com/nexuscore/agentrt/internal/sessions"
	"github.com/nexuscore/agentrt/pkg/models"
)

// SessionStore is the narrow seam the runner needs from internal/sessions.Store.
type SessionStore interface {
	GetOrCreate(ctx context.Context, key string, agentID string) (*models.Session, error)
}

// AccessDeniedError is returned when the Access Control helper denies an
// inbound message; Message is safe to relay back to the sender verbatim.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// Runner is the Channel Agent Runner facade.
type Runner struct {
	Sessions      SessionStore
	Loop          *agent.Loop
	Access        *AccessController
	DefaultPrompt string
	DefaultModel  string
	Builtins      []agent.Tool
}

func NewRunner(sessionStore SessionStore, loop *agent.Loop, access *AccessController, defaultPrompt, defaultModel string, builtins []agent.Tool) *Runner {
	return &Runner{
		Sessions:      sessionStore,
		Loop:          loop,
		Access:        access,
		DefaultPrompt: defaultPrompt,
		DefaultModel:  defaultModel,
		Builtins:      builtins,
	}
}

// Run resolves the agent's session for this channel thread, enforces the
// channel's dm_policy, injects contextPreamble as an additional system
// section, and runs the agent loop to completion (spec §4.K).
//
// On access denial it returns *AccessDeniedError. On an LLM provider error
// it returns the provider's classified *apperr.Error unchanged so the
// bridge can decide whether to fail over to another provider.
func (r *Runner) Run(ctx context.Context, channelTag, contextPreamble, userText, userIdentifier, agentID string) (string, error) {
	decision, err := r.Access.Check(ctx, channelTag, userIdentifier)
	if err != nil {
		return "", apperr.New(apperr.KindChannel, "access check", err)
	}
	if !decision.Allowed {
		return "", &AccessDeniedError{Message: decision.Message}
	}

	key := sessions.SessionKey(agentID, channelTag, userIdentifier)
	session, err := r.Sessions.GetOrCreate(ctx, key, agentID)
	if err != nil {
		return "", apperr.New(apperr.KindChannel, "resolve session", err)
	}

	in := agent.RunInput{
		SessionID: session.ID,
		Agent:     &models.Agent{ID: agentID},
		Role:      agent.RoleChat,
		Model:     r.DefaultModel,
		SystemPrompt: agent.SystemPromptSections{
			DefaultPrompt:   r.DefaultPrompt,
			ChannelPreamble: contextPreamble,
		},
		IncomingMsg: &models.Message{
			SessionID: session.ID,
			Role:      models.RoleUser,
			Content:   userText,
			CreatedAt: time.Now(),
		},
		Builtins: r.Builtins,
	}

	result, err := r.Loop.Run(ctx, in)
	if err != nil {
		return "", classifyLoopError(err)
	}
	return result.Text, nil
}

// classifyLoopError passes apperr.Error values through unchanged (the
// provider adapters already classify billing/auth/quota/rate-limit errors
// per spec §7) and wraps anything else as a generic channel error.
func classifyLoopError(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.New(apperr.KindChannel, "run agent loop", fmt.Errorf("%w", err))
}
