package orchestrator

import (
	"context"

	"github.com/nexuscore/agentrt/internal/agent/builtins"
)

// Directory adapts Store to builtins.AgentDirectory, the narrow read-only
// seam the "agents" builtin uses for roster introspection.
type Directory struct{ store Store }

// NewDirectory wraps store as a builtins.AgentDirectory.
func NewDirectory(store Store) *Directory { return &Directory{store: store} }

var _ builtins.AgentDirectory = (*Directory)(nil)

func (d *Directory) ListAgents(ctx context.Context) ([]builtins.AgentSummary, error) {
	agents, err := d.store.ListAgentRecords(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]builtins.AgentSummary, len(agents))
	for i, a := range agents {
		out[i] = builtins.AgentSummary{ID: a.ID, Role: string(a.Role), Specialty: a.Specialty}
	}
	return out, nil
}

func (d *Directory) GetAgent(ctx context.Context, agentID string) (*builtins.AgentSummary, error) {
	a, err := d.store.GetAgentRecord(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return &builtins.AgentSummary{ID: a.ID, Role: string(a.Role), Specialty: a.Specialty}, nil
}
