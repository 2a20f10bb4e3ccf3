// Package models holds the data types shared across the runtime: agents,
// sessions, messages, tool calls, MCP servers, memories, tasks, and the
// multi-agent project bus.
package models

import "time"

// AgentRole selects which loop variant an agent runs under (spec §4.H).
type AgentRole string

const (
	RoleChatAgent AgentRole = "chat"
	RoleBoss      AgentRole = "boss"
	RoleWorker    AgentRole = "worker"
)

// Agent is an addressable, configured conversational entity.
type Agent struct {
	ID           string    `json:"agent_id"`
	Role         AgentRole `json:"role"`
	Specialty    string    `json:"specialty,omitempty"`
	ModelOverride string   `json:"model_override,omitempty"`
	// Capabilities is the set of allowed tool names. Empty means "all tools".
	Capabilities []string `json:"capabilities,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCapabilityFilter reports whether the agent restricts its tool set.
func (a *Agent) HasCapabilityFilter() bool {
	return a != nil && len(a.Capabilities) > 0
}

// AllowsCapability reports whether name is listed in the agent's capability set.
func (a *Agent) AllowsCapability(name string) bool {
	if !a.HasCapabilityFilter() {
		return true
	}
	for _, c := range a.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// SoulFile reserved names (spec §6 "Soul files").
const (
	SoulIdentity = "IDENTITY.md"
	SoulSoul     = "SOUL.md"
	SoulUser     = "USER.md"
	SoulAgents   = "AGENTS.md"
	SoulTools    = "TOOLS.md"
)

// AgentFile is a per-agent markdown blob, keyed by (agent_id, file_name).
type AgentFile struct {
	AgentID   string    `json:"agent_id"`
	FileName  string    `json:"file_name"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
