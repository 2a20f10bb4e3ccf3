package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

// TaskSummary is the task_info surfaced by the tasks builtin.
type TaskSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CronEnabled bool   `json:"cron_enabled"`
	NextRunAt   string `json:"next_run_at,omitempty"`
}

// TaskStore is the narrow seam the Event Dispatcher/task scheduler
// implements for the tasks builtin (list/get/create, spec §4.J).
type TaskStore interface {
	ListTasks(ctx context.Context, agentID string) ([]TaskSummary, error)
	CreateTask(ctx context.Context, agentID, description, cronExpr string) (string, error)
}

// TasksTool lists and creates tasks visible to the acting agent.
type TasksTool struct{ store TaskStore }

func NewTasksTool(store TaskStore) *TasksTool { return &TasksTool{store: store} }

func (t *TasksTool) Name() string        { return "tasks" }
func (t *TasksTool) Description() string { return "List or create scheduled/triggered tasks." }
// TasksToolParams is the tasks builtin's tool-call argument shape.
type TasksToolParams struct {
	Action      string `json:"action" jsonschema:"required,description=Action: list, create."`
	Description string `json:"description" jsonschema:"description=Task description (create only)."`
	Cron        string `json:"cron" jsonschema:"description=Cron expression (create only, optional)."`
}

func (t *TasksTool) Schema() json.RawMessage {
	return structSchema[TasksToolParams]()
}

func (t *TasksTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	agentID, ok := agent.AgentIDFromContext(ctx)
	if !ok {
		return toolError("no agent identity in context"), nil
	}
	var input TasksToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "list":
		tasks, err := t.store.ListTasks(ctx, agentID)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"tasks": tasks}), nil
	case "create":
		if strings.TrimSpace(input.Description) == "" {
			return toolError("description is required"), nil
		}
		id, err := t.store.CreateTask(ctx, agentID, input.Description, input.Cron)
		if err != nil {
			return toolError(err.Error()), nil
		}
		return toolOK(map[string]any{"id": id, "status": "created"}), nil
	default:
		return toolError("action must be one of: list, create"), nil
	}
}
