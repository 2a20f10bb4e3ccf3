package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexuscore/agentrt/internal/usage"
	"github.com/nexuscore/agentrt/pkg/models"
)

// SessionStore is the Agent Loop's view of session persistence: loading
// history and appending newly produced messages. internal/sessions.Store
// implements this.
type SessionStore interface {
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
}

// MaxRoundsReachedMarker is appended to a partial reply when the loop
// exhausts its round budget without a terminal response (spec §4.H).
const MaxRoundsReachedMarker = "\n\n[max rounds reached]"

const historyLoadLimit = 200

// LoopConfig parameterizes one Agent Loop instance.
type LoopConfig struct {
	MaxRounds        int
	ToolTimeout      time.Duration
	MaxTokens        int
	BudgetHardCapUSD float64
	ModelCost        usage.Cost
}

// DefaultLoopConfig mirrors conventional defaults: 10 rounds, 30s per tool,
// 4096 max output tokens, no hard cost cap.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxRounds:   10,
		ToolTimeout: 30 * time.Second,
		MaxTokens:   4096,
	}
}

// ToolCorpus resolves the Tool-RAG Index's currently-loaded tool names
// (spec §4.D) into their Tool implementations for the next round's
// registry build. internal/ragindex.Index implements this.
type ToolCorpus interface {
	Resolve(loaded map[string]bool) []Tool
}

// Loop is the central iterator (spec §4.H): it alternates LLM calls with
// tool dispatch, persists every assistant/tool pair, and enforces the
// reconciliation invariant, cost budget, and role-specific termination.
type Loop struct {
	Provider   LLMProvider
	Sessions   SessionStore
	Registry   *ToolRegistry
	Dispatcher *Dispatcher
	Usage      *usage.Tracker
	Config     LoopConfig
	// ToolCorpus resolves loaded_tools into their Tool implementations each
	// round, appended alongside in.SkillTools. Nil disables the Tool-RAG
	// Index entirely (every tool must be passed via RunInput directly).
	ToolCorpus ToolCorpus
}

// RunInput is everything one invocation of the loop needs beyond what is
// wired into Loop itself.
type RunInput struct {
	SessionID      string
	TenantID       string
	Agent          *models.Agent
	Role           Role
	Model          string
	SystemPrompt   SystemPromptSections
	IncomingMsg    *models.Message
	Builtins       []Tool
	SkillTools     []Tool
	MCPTools       []Tool
	LoadedTools    map[string]bool
}

// RunResult is the loop's terminal outcome.
type RunResult struct {
	Text           string
	Rounds         int
	MaxRoundsHit   bool
	TerminatedRole string // "report_progress" or "project_complete" when role-terminated
}

// Run executes the round loop to completion (spec §4.H's pseudocode).
func (l *Loop) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	cfg := l.Config
	if cfg.MaxRounds <= 0 {
		cfg = DefaultLoopConfig()
	}

	history, err := l.Sessions.GetHistory(ctx, in.SessionID, historyLoadLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history = ReconcileTranscript(history)

	if in.IncomingMsg != nil {
		if err := l.Sessions.AppendMessage(ctx, in.SessionID, in.IncomingMsg); err != nil {
			return nil, fmt.Errorf("persist inbound message: %w", err)
		}
		history = append(history, in.IncomingMsg)
	}

	system := ComposeSystemPrompt(in.SystemPrompt)
	loadedTools := in.LoadedTools
	if loadedTools == nil {
		loadedTools = make(map[string]bool)
	}

	result := &RunResult{}

	for round := 0; round < cfg.MaxRounds; round++ {
		result.Rounds = round + 1

		if err := l.Usage.CheckBudget(in.TenantID, cfg.BudgetHardCapUSD, time.Now()); err != nil {
			return nil, err
		}

		skillTools := in.SkillTools
		if l.ToolCorpus != nil {
			if resolved := l.ToolCorpus.Resolve(loadedTools); len(resolved) > 0 {
				skillTools = append(append([]Tool{}, skillTools...), resolved...)
			}
		}

		tools := l.Registry.Build(BuildInput{
			Agent:       in.Agent,
			Role:        in.Role,
			Builtins:    in.Builtins,
			SkillTools:  skillTools,
			MCPTools:    in.MCPTools,
			LoadedTools: loadedTools,
		})

		req := &CompletionRequest{
			Model:     in.Model,
			System:    system,
			Messages:  toCompletionMessages(history),
			Tools:     toToolDefinitions(tools),
			MaxTokens: cfg.MaxTokens,
		}

		resp, err := l.Provider.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("provider call: %w", err)
		}

		l.Usage.Record(in.TenantID, usage.Usage{
			InputTokens:       int64(resp.InputTokens),
			OutputTokens:      int64(resp.OutputTokens),
			CacheReadTokens:   int64(resp.CacheReadTokens),
			CacheCreateTokens: int64(resp.CacheCreateTokens),
		}, cfg.ModelCost, time.Now())

		if len(resp.ToolCalls) == 0 {
			result.Text = resp.Text
			if err := l.persistAssistant(ctx, in.SessionID, resp.Text, nil); err != nil {
				return nil, err
			}
			return result, nil
		}

		assistantMsg := &models.Message{
			SessionID: in.SessionID,
			Role:      models.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: toModelToolCalls(resp.ToolCalls),
		}
		result.Text = resp.Text
		if err := l.Sessions.AppendMessage(ctx, in.SessionID, assistantMsg); err != nil {
			return nil, fmt.Errorf("persist assistant message: %w", err)
		}
		history = append(history, assistantMsg)

		terminated := ""
		for _, tc := range resp.ToolCalls {
			toolCtx := WithLoadedTools(ctx, loadedTools)
			var cancel context.CancelFunc
			if cfg.ToolTimeout > 0 {
				toolCtx, cancel = context.WithTimeout(toolCtx, cfg.ToolTimeout)
			}
			res := l.Dispatcher.Execute(toolCtx, ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}, agentIDOf(in.Agent))
			if cancel != nil {
				cancel()
			}

			toolMsg := &models.Message{
				SessionID:  in.SessionID,
				Role:       models.RoleTool,
				ToolCallID: tc.ID,
				Content:    res.Output,
			}
			if err := l.Sessions.AppendMessage(ctx, in.SessionID, toolMsg); err != nil {
				return nil, fmt.Errorf("persist tool message: %w", err)
			}
			history = append(history, toolMsg)

			if term := roleTermination(in.Role, tc.Name, tc.Arguments); term != "" {
				terminated = term
			}
		}

		if terminated != "" {
			result.TerminatedRole = terminated
			return result, nil
		}
	}

	result.MaxRoundsHit = true
	result.Text += MaxRoundsReachedMarker
	return result, nil
}

func (l *Loop) persistAssistant(ctx context.Context, sessionID, text string, toolCalls []models.ToolCall) error {
	return l.Sessions.AppendMessage(ctx, sessionID, &models.Message{
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   text,
		ToolCalls: toolCalls,
	})
}

func agentIDOf(a *models.Agent) string {
	if a == nil {
		return ""
	}
	return a.ID
}

// roleTermination inspects a just-executed tool call and reports the
// control-tool name if it satisfies the role's termination condition
// (spec §4.H): worker on report_progress with a terminal status, boss on
// project_complete.
func roleTermination(role Role, toolName string, args json.RawMessage) string {
	switch {
	case role == RoleWorker && toolName == "report_progress":
		var payload struct {
			Status string `json:"status"`
		}
		if json.Unmarshal(args, &payload) == nil {
			switch payload.Status {
			case "done", "blocked", "error":
				return "report_progress"
			}
		}
		return ""
	case role == RoleBoss && toolName == "project_complete":
		return "project_complete"
	default:
		return ""
	}
}

func toCompletionMessages(history []*models.Message) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(history))
	for _, m := range history {
		cm := CompletionMessage{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, ToolCallRequest{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		if m.Role == models.RoleTool {
			cm.ToolResults = append(cm.ToolResults, ToolResultMessage{ToolCallID: m.ToolCallID, Content: m.Content})
		}
		out = append(out, cm)
	}
	return out
}

func toToolDefinitions(tools []Tool) []ToolDefinition {
	out := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDefinition{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	return out
}

func toModelToolCalls(calls []ToolCallRequest) []models.ToolCall {
	out := make([]models.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, models.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	return out
}
