package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nexuscore/agentrt/pkg/models"
)

// Store is the Event Dispatcher's narrow view of internal/tasks.Store.
type Store interface {
	EventTriggerable(ctx context.Context) ([]*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	AppendActivity(ctx context.Context, activity *models.TaskActivity) error
}

// Executor is the Event Dispatcher's narrow view of internal/tasks.Executor.
type Executor interface {
	Execute(ctx context.Context, task *models.Task) error
}

// NextRunFunc advances a cron-enabled task's next_run_at after it fires.
// internal/tasks.NextRun satisfies this.
type NextRunFunc func(expr string, now time.Time) time.Time

// Dispatcher matches inbound engine events against event-triggered tasks
// and spawns their execution (spec §4.J).
type Dispatcher struct {
	Store    Store
	Executor Executor
	NextRun  NextRunFunc
	Logger   *slog.Logger
}

func NewDispatcher(store Store, executor Executor, nextRun NextRunFunc) *Dispatcher {
	logger := slog.Default().With("component", "event-dispatcher")
	return &Dispatcher{Store: store, Executor: executor, NextRun: nextRun, Logger: logger}
}

// Dispatch runs the three-step matching pseudocode from spec §4.J and
// returns the number of tasks it matched and fired.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.EngineEvent) (int, error) {
	candidates, err := d.Store.EventTriggerable(ctx)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, task := range candidates {
		var trig Trigger
		if err := json.Unmarshal(task.EventTrigger, &trig); err != nil {
			d.Logger.Warn("unparseable event_trigger", "task_id", task.ID, "error", err)
			continue
		}
		if !trig.Matches(ev) {
			continue
		}
		matched++
		d.fire(ctx, task, ev)
	}
	return matched, nil
}

func (d *Dispatcher) fire(ctx context.Context, task *models.Task, ev models.EngineEvent) {
	now := time.Now()
	task.LastRunAt = now
	if task.CronTriggerable() && d.NextRun != nil {
		task.NextRunAt = d.NextRun(task.CronSchedule, now)
	}
	if err := d.Store.Update(ctx, task); err != nil {
		d.Logger.Error("update task after event match", "task_id", task.ID, "error", err)
		return
	}

	detail, _ := json.Marshal(ev)
	if err := d.Store.AppendActivity(ctx, &models.TaskActivity{
		TaskID:    task.ID,
		Kind:      models.ActivityEventTriggered,
		Detail:    string(detail),
		CreatedAt: now,
	}); err != nil {
		d.Logger.Error("append event activity", "task_id", task.ID, "error", err)
	}

	if d.Executor == nil {
		return
	}
	if err := d.Executor.Execute(ctx, task); err != nil {
		d.Logger.Error("execute event-triggered task", "task_id", task.ID, "error", err)
		_ = d.Store.AppendActivity(ctx, &models.TaskActivity{
			TaskID: task.ID, Kind: models.ActivityFailed, Detail: err.Error(), CreatedAt: time.Now(),
		})
		return
	}
	_ = d.Store.AppendActivity(ctx, &models.TaskActivity{
		TaskID: task.ID, Kind: models.ActivityCompleted, CreatedAt: time.Now(),
	})
}
