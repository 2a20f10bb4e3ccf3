package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nexuscore/agentrt/pkg/models"
)

type stubTool struct {
	name string
}

func (s stubTool) Name() string             { return s.name }
func (s stubTool) Description() string      { return "stub " + s.name }
func (s stubTool) Schema() json.RawMessage  { return json.RawMessage(`{}`) }
func (s stubTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Success: true, Output: s.name}, nil
}

func names(tools []Tool) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name()
	}
	return out
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func TestBuildNoCapabilityFilterReturnsEverything(t *testing.T) {
	r := NewToolRegistry()
	out := r.Build(BuildInput{
		Agent:    &models.Agent{ID: "a1"},
		Role:     RoleChat,
		Builtins: []Tool{stubTool{"exec"}, stubTool{"fetch"}},
	})
	if len(out) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(out))
	}
}

func TestBuildCapabilityFilterRestricts(t *testing.T) {
	r := NewToolRegistry()
	out := r.Build(BuildInput{
		Agent:    &models.Agent{ID: "a1", Capabilities: []string{"fetch"}},
		Role:     RoleChat,
		Builtins: []Tool{stubTool{"exec"}, stubTool{"fetch"}},
	})
	got := names(out)
	if contains(got, "exec") || !contains(got, "fetch") {
		t.Fatalf("expected only fetch retained, got %v", got)
	}
}

func TestBuildForceKeepsWorkerControlTool(t *testing.T) {
	r := NewToolRegistry()
	out := r.Build(BuildInput{
		Agent:    &models.Agent{ID: "a1", Capabilities: []string{"fetch"}},
		Role:     RoleWorker,
		Builtins: []Tool{stubTool{"fetch"}, stubTool{"report_progress"}},
	})
	got := names(out)
	if !contains(got, "report_progress") {
		t.Fatalf("expected report_progress force-kept, got %v", got)
	}
}

func TestBuildForceKeepsBossControlTools(t *testing.T) {
	r := NewToolRegistry()
	out := r.Build(BuildInput{
		Agent:    &models.Agent{ID: "boss1", Capabilities: []string{"fetch"}},
		Role:     RoleBoss,
		Builtins: []Tool{stubTool{"fetch"}, stubTool{"delegate_task"}, stubTool{"project_complete"}},
	})
	got := names(out)
	for _, want := range []string{"delegate_task", "project_complete"} {
		if !contains(got, want) {
			t.Fatalf("expected %s force-kept, got %v", want, got)
		}
	}
}

func TestBuildPrecedenceMCPOverBuiltin(t *testing.T) {
	r := NewToolRegistry()
	out := r.Build(BuildInput{
		Role:     RoleChat,
		Builtins: []Tool{stubTool{"search"}},
		MCPTools: []Tool{stubTool{"search"}},
	})
	if len(out) != 1 {
		t.Fatalf("expected name collision deduped to 1 tool, got %d", len(out))
	}
	res, _ := out[0].Execute(context.Background(), nil)
	if res.Output != "search" {
		t.Fatalf("expected the MCP-sourced stub to win, got %v", res)
	}
}

func TestBuildLoadedToolsBypassCapabilityFilter(t *testing.T) {
	r := NewToolRegistry()
	out := r.Build(BuildInput{
		Agent:       &models.Agent{ID: "a1", Capabilities: []string{"fetch"}},
		Role:        RoleChat,
		Builtins:    []Tool{stubTool{"fetch"}, stubTool{"trading_swap"}},
		LoadedTools: map[string]bool{"trading_swap": true},
	})
	got := names(out)
	if !contains(got, "trading_swap") {
		t.Fatalf("expected loaded tool to bypass capability filter, got %v", got)
	}
}
