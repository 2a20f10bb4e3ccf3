package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuscore/agentrt/internal/agent/builtins"
	"github.com/nexuscore/agentrt/pkg/models"
)

// BuiltinAdapter narrows a Store down to internal/agent/builtins.TaskStore,
// the seam the "tasks" chat tool dispatches through.
type BuiltinAdapter struct{ store Store }

func NewBuiltinAdapter(store Store) *BuiltinAdapter { return &BuiltinAdapter{store: store} }

var _ builtins.TaskStore = (*BuiltinAdapter)(nil)

func (a *BuiltinAdapter) ListTasks(ctx context.Context, agentID string) ([]builtins.TaskSummary, error) {
	tasks, err := a.store.List(ctx, agentID)
	if err != nil {
		return nil, err
	}
	out := make([]builtins.TaskSummary, len(tasks))
	for i, t := range tasks {
		summary := builtins.TaskSummary{
			ID:          t.ID,
			Description: t.Description,
			Status:      string(t.Status),
			CronEnabled: t.CronEnabled,
		}
		if !t.NextRunAt.IsZero() {
			summary.NextRunAt = t.NextRunAt.Format("2006-01-02T15:04:05Z07:00")
		}
		out[i] = summary
	}
	return out, nil
}

func (a *BuiltinAdapter) CreateTask(ctx context.Context, agentID, description, cronExpr string) (string, error) {
	task := &models.Task{
		Title:         description,
		Description:   description,
		Status:        models.TaskPending,
		AssignedAgent: agentID,
	}
	if cronExpr != "" {
		task.CronSchedule = cronExpr
		task.CronEnabled = true
		task.NextRunAt = NextRun(cronExpr, time.Now())
	}
	if err := a.store.Create(ctx, task); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	return task.ID, nil
}
