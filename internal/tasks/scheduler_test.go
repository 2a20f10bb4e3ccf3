package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexuscore/agentrt/pkg/models"
)

type recordingExecutor struct {
	executed []string
	fail     map[string]bool
}

func (r *recordingExecutor) Execute(ctx context.Context, task *models.Task) error {
	r.executed = append(r.executed, task.ID)
	if r.fail[task.ID] {
		return errors.New("boom")
	}
	return nil
}

func TestSchedulerPollOnceAdvancesNextRun(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	task := &models.Task{CronEnabled: true, CronSchedule: "* * * * *", NextRunAt: now.Add(-time.Minute)}
	store.Create(ctx, task)

	executor := &recordingExecutor{}
	sched := NewScheduler(store, executor, DefaultSchedulerConfig())

	if err := sched.PollOnce(ctx, now); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
	if len(executor.executed) != 1 || executor.executed[0] != task.ID {
		t.Fatalf("expected task executed once, got %+v", executor.executed)
	}

	got, _ := store.Get(ctx, task.ID)
	if !got.NextRunAt.After(now) {
		t.Fatalf("expected next_run_at advanced past now, got %v", got.NextRunAt)
	}
	if got.LastRunAt.IsZero() {
		t.Fatal("expected last_run_at set")
	}

	activity, _ := store.ListActivity(ctx, task.ID)
	kinds := make([]models.TaskActivityKind, len(activity))
	for i, a := range activity {
		kinds[i] = a.Kind
	}
	if len(kinds) != 2 || kinds[0] != models.ActivityCronTriggered || kinds[1] != models.ActivityCompleted {
		t.Fatalf("unexpected activity kinds: %+v", kinds)
	}
}

func TestSchedulerPollOnceRecordsFailure(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	task := &models.Task{CronEnabled: true, CronSchedule: "* * * * *", NextRunAt: now.Add(-time.Minute)}
	store.Create(ctx, task)

	executor := &recordingExecutor{fail: map[string]bool{task.ID: true}}
	sched := NewScheduler(store, executor, DefaultSchedulerConfig())

	if err := sched.PollOnce(ctx, now); err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}

	activity, _ := store.ListActivity(ctx, task.ID)
	if len(activity) != 2 || activity[1].Kind != models.ActivityFailed {
		t.Fatalf("expected failure activity recorded, got %+v", activity)
	}
}

func TestNextRunUnparseableExpressionFallsBackADay(t *testing.T) {
	now := time.Now()
	next := NextRun("not a cron expr", now)
	if !next.After(now.Add(23 * time.Hour)) {
		t.Fatalf("expected fallback ~24h out, got %v", next)
	}
}
