package orchestrator

import (
	"context"
	"testing"

	"github.com/nexuscore/agentrt/pkg/models"
)

func TestMemoryStoreAgentRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.RegisterAgent(ctx, &models.Agent{ID: "coder", Role: models.RoleWorker, Specialty: "go"}); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}

	got, err := store.GetAgentRecord(ctx, "coder")
	if err != nil {
		t.Fatalf("GetAgentRecord() error = %v", err)
	}
	if got.Specialty != "go" {
		t.Fatalf("unexpected agent: %+v", got)
	}

	got.Specialty = "mutated"
	again, _ := store.GetAgentRecord(ctx, "coder")
	if again.Specialty != "go" {
		t.Fatalf("expected store to be immune to caller mutation, got %q", again.Specialty)
	}

	all, err := store.ListAgentRecords(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListAgentRecords() = %v, %v", all, err)
	}
}

func TestMemoryStoreProjectAgentStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	project := &models.Project{ID: "p1", BossID: "boss", Agents: []models.ProjectAgent{{AgentID: "coder", Status: "idle"}}}
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	if err := store.SetProjectAgentStatus(ctx, "p1", "coder", "running", "read README"); err != nil {
		t.Fatalf("SetProjectAgentStatus() error = %v", err)
	}

	got, err := store.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Agents[0].Status != "running" || got.Agents[0].CurrentTask != "read README" {
		t.Fatalf("unexpected project agent state: %+v", got.Agents[0])
	}

	if err := store.SetProjectAgentStatus(ctx, "p1", "missing", "running", ""); err == nil {
		t.Fatal("expected error for unknown project agent")
	}
}

func TestMemoryStoreProjectMessagesOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.CreateProject(ctx, &models.Project{ID: "p1", BossID: "boss"})

	store.AppendProjectMessage(ctx, &models.ProjectMessage{ProjectID: "p1", From: "boss", Kind: models.ProjectMsgTask, Content: "go"})
	store.AppendProjectMessage(ctx, &models.ProjectMessage{ProjectID: "p1", From: "coder", Kind: models.ProjectMsgResult, Content: "done"})

	msgs, err := store.ListProjectMessages(ctx, "p1")
	if err != nil {
		t.Fatalf("ListProjectMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[1].Content != "done" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestMemoryStoreAgentMessageBroadcastVisibleToEveryAgent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.SendAgentMessage(ctx, &models.AgentMessage{From: "boss", To: models.BroadcastRecipient, Content: "status update"}); err != nil {
		t.Fatalf("SendAgentMessage() error = %v", err)
	}
	if err := store.SendAgentMessage(ctx, &models.AgentMessage{From: "boss", To: "coder", Content: "direct note"}); err != nil {
		t.Fatalf("SendAgentMessage() error = %v", err)
	}

	coderInbox, err := store.ListAgentMessages(ctx, "coder")
	if err != nil || len(coderInbox) != 2 {
		t.Fatalf("expected coder to see direct + broadcast messages, got %v, %v", coderInbox, err)
	}

	reviewerInbox, err := store.ListAgentMessages(ctx, "reviewer")
	if err != nil || len(reviewerInbox) != 1 {
		t.Fatalf("expected reviewer to see only the broadcast message, got %v, %v", reviewerInbox, err)
	}
}

func TestMemoryStoreMarkAgentMessageRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	msg := &models.AgentMessage{From: "boss", To: "coder", Content: "hi"}
	store.SendAgentMessage(ctx, msg)

	if err := store.MarkAgentMessageRead(ctx, msg.ID); err != nil {
		t.Fatalf("MarkAgentMessageRead() error = %v", err)
	}

	inbox, _ := store.ListAgentMessages(ctx, "coder")
	if !inbox[0].Read {
		t.Fatal("expected message to be marked read")
	}

	if err := store.MarkAgentMessageRead(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown message id")
	}
}

func TestProjectSessionID(t *testing.T) {
	if got := ProjectSessionID("p1", "coder"); got != "eng-project-p1-coder" {
		t.Fatalf("unexpected session id: %q", got)
	}
}
