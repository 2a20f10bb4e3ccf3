package ragindex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nexuscore/agentrt/internal/agent"
)

func TestRequestToolsToolDomainLookup(t *testing.T) {
	idx := NewIndex(nil, nil)
	idx.Register(Entry{Tool: fakeTool{name: "send_email", description: "send an email"}, Domains: []string{"email"}})
	tool := NewRequestToolsTool(idx)

	params, _ := json.Marshal(map[string]any{"domain": "email"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil || !res.Success {
		t.Fatalf("Execute() = %+v, %v", res, err)
	}

	var out struct {
		Tools []string `json:"tools"`
	}
	if err := json.Unmarshal([]byte(res.Output), &out); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(out.Tools) != 1 || out.Tools[0] != "send_email" {
		t.Fatalf("unexpected tools: %+v", out.Tools)
	}
}

func TestRequestToolsToolRequiresQueryOrDomain(t *testing.T) {
	tool := NewRequestToolsTool(NewIndex(nil, nil))
	res, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure with neither query nor domain set")
	}
}

func TestRequestToolsToolMarksLoadedOnSharedContextMap(t *testing.T) {
	idx := NewIndex(nil, nil)
	idx.Register(Entry{Tool: fakeTool{name: "send_email", description: "send an email"}, Domains: []string{"email"}})
	tool := NewRequestToolsTool(idx)

	loaded := map[string]bool{}
	ctx := agent.WithLoadedTools(context.Background(), loaded)
	params, _ := json.Marshal(map[string]any{"domain": "email"})
	if _, err := tool.Execute(ctx, params); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !loaded["send_email"] {
		t.Fatal("expected loaded_tools map mutated through context")
	}
}
