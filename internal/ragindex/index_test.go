package ragindex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nexuscore/agentrt/internal/agent"
)

type fakeTool struct {
	name, description string
}

func (t fakeTool) Name() string            { return t.name }
func (t fakeTool) Description() string     { return t.description }
func (t fakeTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (t fakeTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Success: true}, nil
}

// hashEmbedder returns a 1-dimensional embedding equal to the number of
// times "needle" occurs in the text, so similarity is deterministic and
// trivial to reason about without a real embedding model.
type hashEmbedder struct{ needle string }

func (h hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	count := 0
	for i := 0; i+len(h.needle) <= len(text); i++ {
		if text[i:i+len(h.needle)] == h.needle {
			count++
		}
	}
	return []float32{float32(count), 1}, nil
}

func TestIndexDomainLookupReturnsTaggedSubset(t *testing.T) {
	idx := NewIndex(nil, nil)
	idx.Register(Entry{Tool: fakeTool{name: "send_email", description: "send an email"}, Domains: []string{"email"}})
	idx.Register(Entry{Tool: fakeTool{name: "place_order", description: "place a trade"}, Domains: []string{"trading"}})

	loaded := map[string]bool{}
	tools, err := idx.RequestTools(context.Background(), "", "email", loaded)
	if err != nil {
		t.Fatalf("RequestTools() error = %v", err)
	}
	if len(tools) != 1 || tools[0].Name() != "send_email" {
		t.Fatalf("unexpected domain result: %+v", tools)
	}
	if !loaded["send_email"] {
		t.Fatal("expected send_email marked loaded")
	}
}

func TestIndexExcludesCoreTools(t *testing.T) {
	idx := NewIndex(nil, []string{"send_email"})
	idx.Register(Entry{Tool: fakeTool{name: "send_email", description: "send an email"}, Domains: []string{"email"}})
	idx.Register(Entry{Tool: fakeTool{name: "draft_email", description: "draft an email"}, Domains: []string{"email"}})

	tools, err := idx.RequestTools(context.Background(), "", "email", map[string]bool{})
	if err != nil {
		t.Fatalf("RequestTools() error = %v", err)
	}
	if len(tools) != 1 || tools[0].Name() != "draft_email" {
		t.Fatalf("expected core tool excluded, got %+v", tools)
	}
}

func TestIndexQuerySimilarityRanksAndCapsTopK(t *testing.T) {
	idx := NewIndex(hashEmbedder{needle: "trade"}, nil)
	idx.topK = 1
	idx.Register(Entry{Tool: fakeTool{name: "place_order", description: "trade trade trade stocks"}})
	idx.Register(Entry{Tool: fakeTool{name: "send_email", description: "send an email"}})

	tools, err := idx.RequestTools(context.Background(), "trade", "", map[string]bool{})
	if err != nil {
		t.Fatalf("RequestTools() error = %v", err)
	}
	if len(tools) != 1 || tools[0].Name() != "place_order" {
		t.Fatalf("expected top-1 most similar tool, got %+v", tools)
	}
}

func TestIndexQueryLookupWithoutEmbedderErrors(t *testing.T) {
	idx := NewIndex(nil, nil)
	idx.Register(Entry{Tool: fakeTool{name: "send_email", description: "send an email"}})
	if _, err := idx.RequestTools(context.Background(), "email", "", map[string]bool{}); err == nil {
		t.Fatal("expected error for query lookup with no embedder configured")
	}
}

func TestIndexResolveReturnsLoadedTools(t *testing.T) {
	idx := NewIndex(nil, nil)
	idx.Register(Entry{Tool: fakeTool{name: "send_email", description: "send an email"}})
	idx.Register(Entry{Tool: fakeTool{name: "place_order", description: "place a trade"}})

	resolved := idx.Resolve(map[string]bool{"send_email": true})
	if len(resolved) != 1 || resolved[0].Name() != "send_email" {
		t.Fatalf("unexpected resolve result: %+v", resolved)
	}
}
