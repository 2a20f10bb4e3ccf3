package models

import (
	"encoding/json"
	"time"
)

// TaskStatus tracks lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is schedulable unit of agent work, triggerable by cron or by an
// EngineEvent (spec §3).
type Task struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Status          TaskStatus      `json:"status"`
	Priority        int             `json:"priority"`
	AssignedAgent   string          `json:"assigned_agent,omitempty"`
	AssignedAgents  []string        `json:"assigned_agents,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	CronSchedule    string          `json:"cron_schedule,omitempty"`
	CronEnabled     bool            `json:"cron_enabled"`
	EventTrigger    json.RawMessage `json:"event_trigger,omitempty"`
	Persistent      bool            `json:"persistent"`
	LastRunAt       time.Time       `json:"last_run_at,omitempty"`
	NextRunAt       time.Time       `json:"next_run_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CronTriggerable reports whether t can be fired by the cron scheduler
// (spec §3 invariant: cron-triggerable iff CronEnabled && CronSchedule != "").
func (t *Task) CronTriggerable() bool {
	return t != nil && t.CronEnabled && t.CronSchedule != ""
}

// Due reports whether t's next scheduled run has arrived.
func (t *Task) Due(now time.Time) bool {
	return t.CronTriggerable() && !t.NextRunAt.IsZero() && !t.NextRunAt.After(now)
}

// TaskActivityKind labels an entry in a task's activity log.
type TaskActivityKind string

const (
	ActivityEventTriggered TaskActivityKind = "event_triggered"
	ActivityCronTriggered  TaskActivityKind = "cron_triggered"
	ActivityCompleted      TaskActivityKind = "completed"
	ActivityFailed         TaskActivityKind = "failed"
)

// TaskActivity is one row in a task's append-only activity log.
type TaskActivity struct {
	ID        string           `json:"id"`
	TaskID    string           `json:"task_id"`
	Kind      TaskActivityKind `json:"kind"`
	Detail    string           `json:"detail,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// EngineEventType tags the union of inbound event sources consumed by the
// Event Dispatcher (spec §3, §4.J).
type EngineEventType string

const (
	EventWebhook      EngineEventType = "webhook"
	EventAgentMessage EngineEventType = "agent_message"
)

// EngineEvent is the tagged union consumed by the Event Dispatcher.
type EngineEvent struct {
	Type EngineEventType `json:"type"`

	// Webhook fields.
	Path    string          `json:"path,omitempty"`
	AgentID string          `json:"agent_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// AgentMessage fields.
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Channel string `json:"channel,omitempty"`
	Content string `json:"content,omitempty"`
}
