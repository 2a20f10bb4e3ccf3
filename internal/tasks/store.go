// Package tasks implements scheduled and event-triggered task execution
// for engine agents (spec §3 Task, §4.J Event Dispatcher). A task either
// carries a cron schedule, an event trigger, or both; the scheduler drives
// the former and internal/events drives the latter, sharing one Store and
// one Executor.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscore/agentrt/pkg/models"
)

// Store is the task/activity persistence seam shared by the cron scheduler
// and the event dispatcher.
type Store interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
	// List returns every task visible to agentID, or every task if
	// agentID is empty.
	List(ctx context.Context, agentID string) ([]*models.Task, error)
	// DueForCron returns cron-triggerable tasks whose NextRunAt has
	// arrived (spec §3 Task.Due).
	DueForCron(ctx context.Context, now time.Time) ([]*models.Task, error)
	// EventTriggerable returns tasks with cron_enabled=true and a
	// non-empty event_trigger (spec §4.J step 1).
	EventTriggerable(ctx context.Context) ([]*models.Task, error)
	AppendActivity(ctx context.Context, activity *models.TaskActivity) error
	ListActivity(ctx context.Context, taskID string) ([]*models.TaskActivity, error)
}

// MemoryStore is an in-memory Store, clone-on-read/write like
// internal/sessions.MemoryStore and internal/orchestrator.MemoryStore.
type MemoryStore struct {
	mu         sync.RWMutex
	tasks      map[string]*models.Task
	activities map[string][]*models.TaskActivity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:      make(map[string]*models.Task),
		activities: make(map[string][]*models.TaskActivity),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(ctx context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if _, exists := m.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	m.tasks[task.ID] = cloneTask(task)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return cloneTask(task), nil
}

func (m *MemoryStore) Update(ctx context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return fmt.Errorf("task %s not found", task.ID)
	}
	task.UpdatedAt = time.Now()
	m.tasks[task.ID] = cloneTask(task)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %s not found", id)
	}
	delete(m.tasks, id)
	delete(m.activities, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, agentID string) ([]*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Task
	for _, task := range m.tasks {
		if agentID != "" && !taskAssignedTo(task, agentID) {
			continue
		}
		out = append(out, cloneTask(task))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DueForCron(ctx context.Context, now time.Time) ([]*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Task
	for _, task := range m.tasks {
		if task.Due(now) {
			out = append(out, cloneTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	return out, nil
}

func (m *MemoryStore) EventTriggerable(ctx context.Context) ([]*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Task
	for _, task := range m.tasks {
		if task.CronEnabled && len(task.EventTrigger) > 0 {
			out = append(out, cloneTask(task))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AppendActivity(ctx context.Context, activity *models.TaskActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[activity.TaskID]; !ok {
		return fmt.Errorf("task %s not found", activity.TaskID)
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	clone := *activity
	m.activities[activity.TaskID] = append(m.activities[activity.TaskID], &clone)
	return nil
}

func (m *MemoryStore) ListActivity(ctx context.Context, taskID string) ([]*models.TaskActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.activities[taskID]
	out := make([]*models.TaskActivity, len(src))
	for i, a := range src {
		clone := *a
		out[i] = &clone
	}
	return out, nil
}

func taskAssignedTo(task *models.Task, agentID string) bool {
	if task.AssignedAgent == agentID {
		return true
	}
	for _, a := range task.AssignedAgents {
		if a == agentID {
			return true
		}
	}
	return false
}

func cloneTask(task *models.Task) *models.Task {
	clone := *task
	if task.AssignedAgents != nil {
		clone.AssignedAgents = append([]string(nil), task.AssignedAgents...)
	}
	if task.EventTrigger != nil {
		clone.EventTrigger = append(json.RawMessage(nil), task.EventTrigger...)
	}
	return &clone
}
