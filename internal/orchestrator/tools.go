package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/agent/builtins"
	"github.com/nexuscore/agentrt/pkg/models"
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

func rawSchema(schema map[string]any) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// DelegateTaskTool is the boss-only control tool that hands a task to a
// worker agent and blocks on its completion (spec §4.I).
type DelegateTaskTool struct{ delegator *Delegator }

func NewDelegateTaskTool(delegator *Delegator) *DelegateTaskTool {
	return &DelegateTaskTool{delegator: delegator}
}

func (t *DelegateTaskTool) Name() string { return "delegate_task" }
func (t *DelegateTaskTool) Description() string {
	return "Delegate a task to a worker agent and wait for its result."
}
func (t *DelegateTaskTool) Schema() json.RawMessage {
	return rawSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{"type": "string", "description": "Worker agent id to delegate to."},
			"task":     map[string]any{"type": "string", "description": "Task description for the worker."},
			"context":  map[string]any{"type": "string", "description": "Extra context the worker needs."},
		},
		"required": []string{"agent_id", "task"},
	})
}

func (t *DelegateTaskTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	bossID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	projectID, ok := ProjectIDFromContext(ctx)
	if !ok {
		return toolError("no active project in context"), nil
	}
	var input struct {
		AgentID string `json:"agent_id"`
		Task    string `json:"task"`
		Context string `json:"context"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.AgentID) == "" || strings.TrimSpace(input.Task) == "" {
		return toolError("agent_id and task are required"), nil
	}

	result, err := t.delegator.Delegate(ctx, projectID, bossID, input.AgentID, input.Task, input.Context)
	if err != nil {
		return toolError(err.Error()), nil
	}

	out := map[string]any{
		"session_id":     ProjectSessionID(projectID, input.AgentID),
		"rounds":         result.Loop.Rounds,
		"max_rounds_hit": result.Loop.MaxRoundsHit,
	}
	if result.Report != nil {
		out["status"] = result.Report.Status
		out["message"] = result.Report.Message
		out["output"] = result.Report.Output
	} else {
		out["text"] = result.Loop.Text
	}
	return toolOK(out), nil
}

// CheckAgentStatusTool lets a boss poll a project teammate's last known
// status without blocking on delegation.
type CheckAgentStatusTool struct{ store Store }

func NewCheckAgentStatusTool(store Store) *CheckAgentStatusTool {
	return &CheckAgentStatusTool{store: store}
}

func (t *CheckAgentStatusTool) Name() string        { return "check_agent_status" }
func (t *CheckAgentStatusTool) Description() string { return "Check a project teammate's current status." }
func (t *CheckAgentStatusTool) Schema() json.RawMessage {
	return rawSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{"type": "string", "description": "Agent id to check."},
		},
		"required": []string{"agent_id"},
	})
}

func (t *CheckAgentStatusTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	projectID, ok := ProjectIDFromContext(ctx)
	if !ok {
		return toolError("no active project in context"), nil
	}
	var input struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	project, err := t.store.GetProject(ctx, projectID)
	if err != nil {
		return toolError(err.Error()), nil
	}
	for _, a := range project.Agents {
		if a.AgentID == input.AgentID {
			return toolOK(a), nil
		}
	}
	return toolError(fmt.Sprintf("agent %s is not on project %s", input.AgentID, projectID)), nil
}

// SendAgentMessageTool is the boss-only unified messaging control tool
// (spec §4.I: "send_agent_message(to|broadcast, message)"). General chat
// agents use the separate agent_message/message_broadcast builtins
// instead; this one is force-kept only for Role == RoleBoss.
type SendAgentMessageTool struct{ bus builtins.AgentMessageBus }

func NewSendAgentMessageTool(bus builtins.AgentMessageBus) *SendAgentMessageTool {
	return &SendAgentMessageTool{bus: bus}
}

func (t *SendAgentMessageTool) Name() string { return "send_agent_message" }
func (t *SendAgentMessageTool) Description() string {
	return "Send a message to a specific agent or broadcast to every agent."
}
func (t *SendAgentMessageTool) Schema() json.RawMessage {
	return rawSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to":        map[string]any{"type": "string", "description": "Recipient agent id. Omit if broadcast is true."},
			"broadcast": map[string]any{"type": "boolean", "description": "Send to every agent instead of one."},
			"message":   map[string]any{"type": "string", "description": "Message content."},
		},
		"required": []string{"message"},
	})
}

func (t *SendAgentMessageTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	from, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	var input struct {
		To        string `json:"to"`
		Broadcast bool   `json:"broadcast"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Message) == "" {
		return toolError("message is required"), nil
	}

	if input.Broadcast || input.To == models.BroadcastRecipient {
		id, err := t.bus.BroadcastAgentMessage(ctx, from, input.Message)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"id": id, "status": "broadcast"}), nil
	}
	if strings.TrimSpace(input.To) == "" {
		return toolError("to is required unless broadcast is true"), nil
	}
	id, err := t.bus.SendAgentMessage(ctx, from, input.To, input.Message)
	if err != nil {
		return toolError(err.Error()), nil
	}
	return toolOK(map[string]any{"id": id, "status": "sent"}), nil
}

// ProjectCompleteTool is the boss's terminal control tool (spec §4.H: the
// Loop checks for this tool name to end a Boss-role run).
type ProjectCompleteTool struct{ store Store }

func NewProjectCompleteTool(store Store) *ProjectCompleteTool {
	return &ProjectCompleteTool{store: store}
}

func (t *ProjectCompleteTool) Name() string        { return "project_complete" }
func (t *ProjectCompleteTool) Description() string { return "Mark the current project finished." }
func (t *ProjectCompleteTool) Schema() json.RawMessage {
	return rawSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{"type": "string", "description": "Summary of what the project accomplished."},
			"status":  map[string]any{"type": "string", "description": "Final status, e.g. done, failed."},
		},
		"required": []string{"summary", "status"},
	})
}

func (t *ProjectCompleteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	bossID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	projectID, ok := ProjectIDFromContext(ctx)
	if !ok {
		return toolError("no active project in context"), nil
	}
	var input struct {
		Summary string `json:"summary"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if err := t.store.AppendProjectMessage(ctx, &models.ProjectMessage{
		ProjectID: projectID,
		From:      bossID,
		Kind:      models.ProjectMsgInfo,
		Content:   fmt.Sprintf("project_complete: %s (%s)", input.Summary, input.Status),
	}); err != nil {
		return toolError(err.Error()), nil
	}
	return toolOK(map[string]any{"project_id": projectID, "status": input.Status}), nil
}

// CreateSubAgentTool lets a boss register a new worker agent mid-project
// (spec §4.I: create_sub_agent(name, role, specialty, system_prompt,
// capabilities?, model?)).
type CreateSubAgentTool struct {
	store Store
	souls builtins.SoulStore
}

func NewCreateSubAgentTool(store Store, souls builtins.SoulStore) *CreateSubAgentTool {
	return &CreateSubAgentTool{store: store, souls: souls}
}

func (t *CreateSubAgentTool) Name() string { return "create_sub_agent" }
func (t *CreateSubAgentTool) Description() string {
	return "Register a new worker agent available for delegation."
}
func (t *CreateSubAgentTool) Schema() json.RawMessage {
	return rawSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":          map[string]any{"type": "string", "description": "Unique agent id/name."},
			"role":          map[string]any{"type": "string", "description": "Role: worker, boss, or chat."},
			"specialty":     map[string]any{"type": "string", "description": "Short specialty label."},
			"system_prompt": map[string]any{"type": "string", "description": "Identity/system prompt for the new agent."},
			"capabilities":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Allowed tool names; empty means all."},
			"model":         map[string]any{"type": "string", "description": "Model override."},
		},
		"required": []string{"name", "role"},
	})
}

func (t *CreateSubAgentTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Name         string   `json:"name"`
		Role         string   `json:"role"`
		Specialty    string   `json:"specialty"`
		SystemPrompt string   `json:"system_prompt"`
		Capabilities []string `json:"capabilities"`
		Model        string   `json:"model"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Name) == "" {
		return toolError("name is required"), nil
	}
	role, err := parseAgentRole(input.Role)
	if err != nil {
		return toolError(err.Error()), nil
	}

	newAgent := &models.Agent{
		ID:            input.Name,
		Role:          role,
		Specialty:     input.Specialty,
		ModelOverride: input.Model,
		Capabilities:  input.Capabilities,
	}
	if err := t.store.RegisterAgent(ctx, newAgent); err != nil {
		return toolError(err.Error()), nil
	}
	if strings.TrimSpace(input.SystemPrompt) != "" && t.souls != nil {
		if err := t.souls.WriteSoulFile(ctx, input.Name, models.SoulIdentity, input.SystemPrompt); err != nil {
			return toolError(err.Error()), nil
		}
	}
	if projectID, ok := ProjectIDFromContext(ctx); ok {
		if project, err := t.store.GetProject(ctx, projectID); err == nil {
			project.Agents = append(project.Agents, models.ProjectAgent{
				AgentID: input.Name, Role: role, Specialty: input.Specialty,
				Status: "idle", Model: input.Model, Capabilities: input.Capabilities,
			})
			_ = t.store.CreateProject(ctx, project)
		}
	}
	return toolOK(map[string]any{"agent_id": input.Name, "role": string(role)}), nil
}

func parseAgentRole(role string) (models.AgentRole, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "worker":
		return models.RoleWorker, nil
	case "boss":
		return models.RoleBoss, nil
	case "chat", "":
		return models.RoleChatAgent, nil
	default:
		return "", fmt.Errorf("role must be one of: worker, boss, chat")
	}
}

// ReportProgressTool is the worker-only control tool (spec §4.H: the Loop
// checks for this tool name with a terminal status to end a Worker-role
// run). Posting here is what surfaces the result on the project bus for
// delegate_task to read back.
type ReportProgressTool struct{ store Store }

func NewReportProgressTool(store Store) *ReportProgressTool {
	return &ReportProgressTool{store: store}
}

func (t *ReportProgressTool) Name() string { return "report_progress" }
func (t *ReportProgressTool) Description() string {
	return "Report progress on a delegated task: done, blocked, or error."
}
func (t *ReportProgressTool) Schema() json.RawMessage {
	return rawSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":  map[string]any{"type": "string", "description": "done, blocked, or error."},
			"message": map[string]any{"type": "string", "description": "Human-readable progress note."},
			"output":  map[string]any{"type": "string", "description": "Result payload for the requester."},
		},
		"required": []string{"status"},
	})
}

func (t *ReportProgressTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	workerID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	projectID, ok := ProjectIDFromContext(ctx)
	if !ok {
		return toolError("no active project in context"), nil
	}
	var input struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Output  string `json:"output"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	kind := models.ProjectMsgProgress
	if input.Status == "done" {
		kind = models.ProjectMsgResult
	}
	content, err := json.Marshal(input)
	if err != nil {
		return toolError(fmt.Sprintf("encode progress: %v", err)), nil
	}
	if err := t.store.AppendProjectMessage(ctx, &models.ProjectMessage{
		ProjectID: projectID,
		From:      workerID,
		Kind:      kind,
		Content:   string(content),
	}); err != nil {
		return toolError(err.Error()), nil
	}
	_ = t.store.SetProjectAgentStatus(ctx, projectID, workerID, input.Status, "")

	return toolOK(map[string]any{"status": "recorded"}), nil
}
