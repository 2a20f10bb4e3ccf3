package agent

import (
	"github.com/nexuscore/agentrt/pkg/models"
)

// Role is the Agent Loop's operating mode (spec §4.H), which changes both
// tool inclusion (here) and termination conditions (loop.go).
type Role int

const (
	RoleChat Role = iota
	RoleWorker
	RoleBoss
)

// WorkerControlTools are force-kept for a worker even under a restrictive
// capability filter, since the loop cannot terminate without them.
var WorkerControlTools = map[string]bool{
	"report_progress": true,
}

// BossControlTools are force-kept for a boss agent (delegation/messaging,
// spec §4.I) regardless of its capability set.
var BossControlTools = map[string]bool{
	"delegate_task":       true,
	"check_agent_status":  true,
	"send_agent_message":  true,
	"project_complete":    true,
	"create_sub_agent":    true,
}

// BuildInput supplies everything ToolRegistry.Build needs to assemble one
// round's tool list. Builtins, skill tools, and MCP tools are provided by
// their owning subsystems; the registry itself stays pure and stateless.
type BuildInput struct {
	Agent       *models.Agent
	Role        Role
	Builtins    []Tool
	SkillTools  []Tool
	MCPTools    []Tool // pre-named "mcp_{server_id}_{name}"
	LoadedTools map[string]bool
}

// ToolRegistry assembles the per-round tool list (spec §4.B). It holds no
// state of its own beyond what BuildInput supplies each call, matching the
// spec's "pure and stateless, rebuilds per round" requirement.
type ToolRegistry struct{}

// NewToolRegistry returns a stateless registry ready to build tool lists.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{}
}

// Build assembles the tool list left-to-right: builtins, then skill tools,
// then MCP tools, then applies the agent's capability filter. Name
// collisions resolve to the highest-precedence source (builtin < skill <
// MCP): a later source overwrites an earlier one with the same name.
func (r *ToolRegistry) Build(in BuildInput) []Tool {
	byName := make(map[string]Tool)
	order := make([]string, 0, len(in.Builtins)+len(in.SkillTools)+len(in.MCPTools))

	add := func(tools []Tool) {
		for _, t := range tools {
			name := t.Name()
			if _, exists := byName[name]; !exists {
				order = append(order, name)
			}
			byName[name] = t
		}
	}
	add(in.Builtins)
	add(in.SkillTools)
	add(in.MCPTools)

	forceKept := forceKeptNames(in.Role)

	var capFilter map[string]bool
	if in.Agent != nil && len(in.Agent.Capabilities) > 0 {
		capFilter = make(map[string]bool, len(in.Agent.Capabilities))
		for _, c := range in.Agent.Capabilities {
			capFilter[c] = true
		}
	}

	result := make([]Tool, 0, len(order))
	for _, name := range order {
		if capFilter != nil && !capFilter[name] && !forceKept[name] {
			// Loaded tools surfaced by the Tool-RAG Index (§4.D) bypass the
			// capability filter for the current request's remaining rounds.
			if !in.LoadedTools[name] {
				continue
			}
		}
		result = append(result, byName[name])
	}
	return result
}

func forceKeptNames(role Role) map[string]bool {
	switch role {
	case RoleWorker:
		return WorkerControlTools
	case RoleBoss:
		return BossControlTools
	default:
		return map[string]bool{}
	}
}
