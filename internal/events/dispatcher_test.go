package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexuscore/agentrt/pkg/models"
)

type fakeStore struct {
	tasks      map[string]*models.Task
	activities []*models.TaskActivity
}

func newFakeStore(tasks ...*models.Task) *fakeStore {
	s := &fakeStore{tasks: make(map[string]*models.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeStore) EventTriggerable(ctx context.Context) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range s.tasks {
		if t.CronEnabled && len(t.EventTrigger) > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, task *models.Task) error {
	if _, ok := s.tasks[task.ID]; !ok {
		return errors.New("not found")
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeStore) AppendActivity(ctx context.Context, activity *models.TaskActivity) error {
	s.activities = append(s.activities, activity)
	return nil
}

type fakeExecutor struct {
	executed []string
	err      error
}

func (e *fakeExecutor) Execute(ctx context.Context, task *models.Task) error {
	e.executed = append(e.executed, task.ID)
	return e.err
}

func TestDispatcherMatchesAndFires(t *testing.T) {
	task := &models.Task{ID: "t1", CronEnabled: true, EventTrigger: []byte(`{"type":"webhook","path":"/hooks/deploy"}`)}
	store := newFakeStore(task)
	executor := &fakeExecutor{}
	dispatcher := NewDispatcher(store, executor, nil)

	matched, err := dispatcher.Dispatch(context.Background(), models.EngineEvent{Type: models.EventWebhook, Path: "/hooks/deploy"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if matched != 1 {
		t.Fatalf("expected 1 match, got %d", matched)
	}
	if len(executor.executed) != 1 || executor.executed[0] != "t1" {
		t.Fatalf("expected task executed, got %+v", executor.executed)
	}
	if task.LastRunAt.IsZero() {
		t.Fatal("expected last_run_at updated")
	}
	if len(store.activities) != 2 || store.activities[0].Kind != models.ActivityEventTriggered {
		t.Fatalf("unexpected activity log: %+v", store.activities)
	}
}

func TestDispatcherSkipsNonMatchingPath(t *testing.T) {
	task := &models.Task{ID: "t1", CronEnabled: true, EventTrigger: []byte(`{"type":"webhook","path":"/hooks/deploy"}`)}
	store := newFakeStore(task)
	executor := &fakeExecutor{}
	dispatcher := NewDispatcher(store, executor, nil)

	matched, err := dispatcher.Dispatch(context.Background(), models.EngineEvent{Type: models.EventWebhook, Path: "/hooks/other"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if matched != 0 || len(executor.executed) != 0 {
		t.Fatalf("expected no match, got matched=%d executed=%+v", matched, executor.executed)
	}
}

func TestDispatcherAdvancesCronNextRunWhenAlsoCronTriggerable(t *testing.T) {
	now := time.Now()
	task := &models.Task{
		ID: "t1", CronEnabled: true, CronSchedule: "* * * * *", NextRunAt: now.Add(time.Hour),
		EventTrigger: []byte(`{"type":"agent_message","channel":"ops"}`),
	}
	store := newFakeStore(task)
	dispatcher := NewDispatcher(store, &fakeExecutor{}, func(expr string, now time.Time) time.Time {
		return now.Add(5 * time.Minute)
	})

	if _, err := dispatcher.Dispatch(context.Background(), models.EngineEvent{Type: models.EventAgentMessage, Channel: "ops"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !task.NextRunAt.Before(now.Add(time.Hour)) {
		t.Fatalf("expected next_run_at recomputed, got %v", task.NextRunAt)
	}
}

func TestDispatcherRecordsExecutorFailure(t *testing.T) {
	task := &models.Task{ID: "t1", CronEnabled: true, EventTrigger: []byte(`{"type":"webhook"}`)}
	store := newFakeStore(task)
	executor := &fakeExecutor{err: errors.New("boom")}
	dispatcher := NewDispatcher(store, executor, nil)

	if _, err := dispatcher.Dispatch(context.Background(), models.EngineEvent{Type: models.EventWebhook}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(store.activities) != 2 || store.activities[1].Kind != models.ActivityFailed {
		t.Fatalf("expected failure activity recorded, got %+v", store.activities)
	}
}
