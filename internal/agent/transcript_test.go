package agent

import (
	"encoding/json"
	"testing"

	"github.com/nexuscore/agentrt/pkg/models"
)

func TestReconcileTranscriptNoop(t *testing.T) {
	history := []*models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}
	out := ReconcileTranscript(history)
	if len(out) != 2 {
		t.Fatalf("expected no change, got %d messages", len(out))
	}
}

func TestReconcileTranscriptRepairsMissingToolResult(t *testing.T) {
	history := []*models.Message{
		{Role: models.RoleUser, Content: "do it"},
		{
			Role: models.RoleAssistant,
			ToolCalls: []models.ToolCall{
				{ID: "tc1", Name: "exec", Arguments: json.RawMessage(`{}`)},
			},
		},
		{Role: models.RoleUser, Content: "still there?"},
	}
	out := ReconcileTranscript(history)

	var found bool
	for _, m := range out {
		if m.Role == models.RoleTool && m.ToolCallID == "tc1" {
			found = true
			if m.Content != MissingResultPlaceholder {
				t.Fatalf("expected placeholder content, got %q", m.Content)
			}
		}
	}
	if !found {
		t.Fatal("expected a synthesized tool message for tc1")
	}

	// The synthesized tool message must appear before the next user message.
	var toolIdx, userIdx int
	for i, m := range out {
		if m.Role == models.RoleTool {
			toolIdx = i
		}
		if m.Role == models.RoleUser && m.Content == "still there?" {
			userIdx = i
		}
	}
	if toolIdx >= userIdx {
		t.Fatalf("expected repaired tool message before next message, tool=%d user=%d", toolIdx, userIdx)
	}
}

func TestReconcileTranscriptPreservesMatchedResult(t *testing.T) {
	history := []*models.Message{
		{
			Role:      models.RoleAssistant,
			ToolCalls: []models.ToolCall{{ID: "tc1", Name: "exec"}},
		},
		{Role: models.RoleTool, ToolCallID: "tc1", Content: "42"},
	}
	out := ReconcileTranscript(history)
	if len(out) != 2 {
		t.Fatalf("expected matched pair untouched, got %d messages", len(out))
	}
	if out[1].Content != "42" {
		t.Fatalf("expected original tool content preserved, got %q", out[1].Content)
	}
}

func TestReconcileTranscriptTrailingUnmatchedAtEnd(t *testing.T) {
	history := []*models.Message{
		{
			Role:      models.RoleAssistant,
			ToolCalls: []models.ToolCall{{ID: "tc1", Name: "exec"}},
		},
	}
	out := ReconcileTranscript(history)
	if len(out) != 2 {
		t.Fatalf("expected synthesized trailing tool message, got %d", len(out))
	}
	if out[1].Role != models.RoleTool || out[1].ToolCallID != "tc1" {
		t.Fatalf("expected synthesized tool message for tc1, got %+v", out[1])
	}
}
