package sessions

import (
	"context"
	"testing"

	"github.com/nexuscore/agentrt/pkg/models"
)

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	session := &models.Session{AgentID: "agent-1", Model: "claude-opus", Key: "agent-1:discord:98765"}

	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.ID == "" {
		t.Fatal("expected session id to be assigned")
	}

	loaded, err := store.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.Key != session.Key {
		t.Fatalf("expected key %q, got %q", session.Key, loaded.Key)
	}

	loaded.SystemPrompt = "be terse"
	if err := store.Update(context.Background(), loaded); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	updated, err := store.Get(context.Background(), loaded.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if updated.SystemPrompt != "be terse" {
		t.Fatal("expected system prompt to update")
	}
	if updated.CreatedAt != session.CreatedAt {
		t.Fatal("expected CreatedAt to survive Update")
	}

	if err := store.Delete(context.Background(), updated.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(context.Background(), updated.ID); err == nil {
		t.Fatal("expected error getting deleted session")
	}
}

func TestMemoryStoreGetOrCreateIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "agent-1:api:user-1", "agent-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := store.GetOrCreate(ctx, "agent-1:api:user-1", "agent-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same session id, got %s and %s", first.ID, second.ID)
	}
}

func TestMemoryStoreMessagesAndHistoryOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "agent-1:api:user-1", "agent-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	for _, content := range []string{"first", "second", "third"} {
		msg := &models.Message{Role: models.RoleUser, Content: content}
		if err := store.AppendMessage(ctx, session.ID, msg); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	history, err := store.GetHistory(ctx, session.ID, 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages with limit, got %d", len(history))
	}
	if history[0].Content != "second" || history[1].Content != "third" {
		t.Fatalf("expected the most recent messages in order, got %+v", history)
	}

	updated, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if updated.MessageCount != 3 {
		t.Fatalf("expected MessageCount 3, got %d", updated.MessageCount)
	}
}

func TestMemoryStoreAppendMessageTrimsOldest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "agent-1:api:user-1", "agent-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	for i := 0; i < maxMessagesPerSession+5; i++ {
		if err := store.AppendMessage(ctx, session.ID, &models.Message{Role: models.RoleUser, Content: "x"}); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	history, err := store.GetHistory(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != maxMessagesPerSession {
		t.Fatalf("expected history capped at %d, got %d", maxMessagesPerSession, len(history))
	}
}

func TestMemoryStoreDeleteCascadesMessages(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "agent-1:api:user-1", "agent-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := store.AppendMessage(ctx, session.ID, &models.Message{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := store.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	history, err := store.GetHistory(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no history after deleting session, got %d", len(history))
	}
}

func TestMemoryStoreSoulFiles(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.WriteSoulFile(ctx, "agent-1", "SOUL", "be helpful"); err != nil {
		t.Fatalf("WriteSoulFile() error = %v", err)
	}
	content, err := store.ReadSoulFile(ctx, "agent-1", "SOUL")
	if err != nil {
		t.Fatalf("ReadSoulFile() error = %v", err)
	}
	if content != "be helpful" {
		t.Fatalf("expected written content, got %q", content)
	}

	names, err := store.ListSoulFiles(ctx, "agent-1")
	if err != nil {
		t.Fatalf("ListSoulFiles() error = %v", err)
	}
	if len(names) != 1 || names[0] != "SOUL" {
		t.Fatalf("expected [SOUL], got %+v", names)
	}

	missing, err := store.ReadSoulFile(ctx, "agent-1", "NO_SUCH_FILE")
	if err != nil {
		t.Fatalf("ReadSoulFile() error = %v", err)
	}
	if missing != "" {
		t.Fatalf("expected empty content for missing file, got %q", missing)
	}
}

func TestMemoryStoreWorkingMemoryRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	payload := []byte(`{"agent_id":"agent-1","slots":["a"]}`)
	if err := store.SaveWorkingMemory(ctx, "agent-1", payload); err != nil {
		t.Fatalf("SaveWorkingMemory() error = %v", err)
	}

	data, found, err := store.LoadWorkingMemory(ctx, "agent-1")
	if err != nil {
		t.Fatalf("LoadWorkingMemory() error = %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if string(data) != string(payload) {
		t.Fatalf("expected round-tripped payload, got %s", data)
	}

	// Mutating the returned slice must not affect the stored copy.
	data[0] = 'X'
	data2, _, _ := store.LoadWorkingMemory(ctx, "agent-1")
	if string(data2) != string(payload) {
		t.Fatal("expected stored snapshot to be immune to caller mutation")
	}

	if err := store.DeleteWorkingMemory(ctx, "agent-1"); err != nil {
		t.Fatalf("DeleteWorkingMemory() error = %v", err)
	}
	_, found, err = store.LoadWorkingMemory(ctx, "agent-1")
	if err != nil {
		t.Fatalf("LoadWorkingMemory() error = %v", err)
	}
	if found {
		t.Fatal("expected snapshot to be gone after delete")
	}
}
