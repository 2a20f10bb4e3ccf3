package models

import "time"

// ProjectAgent is one member of a boss-led project team.
type ProjectAgent struct {
	AgentID      string   `json:"agent_id"`
	Role         AgentRole `json:"role"`
	Specialty    string   `json:"specialty,omitempty"`
	Status       string   `json:"status"`
	CurrentTask  string   `json:"current_task,omitempty"`
	Model        string   `json:"model,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Project groups agents into a boss-led team. Invariant: exactly one boss
// per project (spec §3).
type Project struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	BossID    string         `json:"boss_id"`
	Agents    []ProjectAgent `json:"agents"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// ProjectMessageKind labels a message on the project bus.
type ProjectMessageKind string

const (
	ProjectMsgTask     ProjectMessageKind = "task"
	ProjectMsgProgress ProjectMessageKind = "progress"
	ProjectMsgResult   ProjectMessageKind = "result"
	ProjectMsgInfo     ProjectMessageKind = "info"
)

// ProjectMessage is one entry on a project's message bus.
type ProjectMessage struct {
	ID        string             `json:"id"`
	ProjectID string             `json:"project_id"`
	From      string             `json:"from"`
	To        string             `json:"to,omitempty"`
	Kind      ProjectMessageKind `json:"kind"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
}

// AgentMessage is a message on the cross-agent messaging bus (spec §4.I).
// To == "broadcast" fans out to every agent id.
type AgentMessage struct {
	ID        string         `json:"id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Channel   string         `json:"channel,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

const BroadcastRecipient = "broadcast"
