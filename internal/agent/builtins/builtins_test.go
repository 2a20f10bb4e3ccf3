package builtins

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nexuscore/agentrt/internal/agent"
)

func withAgent(t *testing.T, id string) context.Context {
	t.Helper()
	return agent.WithAgentID(context.Background(), id)
}

func TestExecToolRunsCommandAndCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	tool := NewExecTool(dir)
	res, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"echo hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(res.Output, "hi") {
		t.Fatalf("expected stdout to contain hi, got %s", res.Output)
	}
}

func TestExecToolSchemaReflectsRequiredFields(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	var schema map[string]any
	if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	required, ok := schema["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "command" {
		t.Fatalf("expected required:[command], got %v", schema["required"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties in schema, got %v", schema["properties"])
	}
	if _, ok := props["timeout_seconds"]; !ok {
		t.Fatal("expected timeout_seconds property in generated schema")
	}
}

func TestExecToolRejectsEmptyCommand(t *testing.T) {
	tool := NewExecTool(t.TempDir())
	res, _ := tool.Execute(context.Background(), json.RawMessage(`{"command":""}`))
	if res.Success {
		t.Fatal("expected failure for empty command")
	}
}

func TestFetchToolRejectsNonAllowlistedHost(t *testing.T) {
	tool := NewFetchTool([]string{"example.com"})
	res, _ := tool.Execute(context.Background(), json.RawMessage(`{"url":"https://evil.example.org/x"}`))
	if res.Success {
		t.Fatal("expected failure for non-allowlisted host")
	}
}

func TestFetchUnallowlistedToolHasDistinctName(t *testing.T) {
	tool := NewFetchUnallowlistedTool()
	if tool.Name() != "fetch_unallowlisted" {
		t.Fatalf("unexpected name: %s", tool.Name())
	}
}

func TestFilesystemReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	write := NewFilesystemWriteTool(dir)
	read := NewFilesystemReadTool(dir)

	writeRes, err := write.Execute(context.Background(), json.RawMessage(`{"path":"notes.txt","content":"hello"}`))
	if err != nil || !writeRes.Success {
		t.Fatalf("write failed: %v %+v", err, writeRes)
	}
	readRes, err := read.Execute(context.Background(), json.RawMessage(`{"path":"notes.txt"}`))
	if err != nil || !readRes.Success {
		t.Fatalf("read failed: %v %+v", err, readRes)
	}
	if !strings.Contains(readRes.Output, "hello") {
		t.Fatalf("expected content hello, got %s", readRes.Output)
	}
}

func TestFilesystemWriteRejectsEscapingWorkspace(t *testing.T) {
	dir := t.TempDir()
	write := NewFilesystemWriteTool(dir)
	res, _ := write.Execute(context.Background(), json.RawMessage(`{"path":"../outside.txt","content":"x"}`))
	if res.Success {
		t.Fatal("expected failure for path escaping workspace")
	}
}

func TestFilesystemWriteOutsideWorkspaceAllowsEscape(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(os.TempDir(), "agentrt-builtins-test-escape.txt")
	defer os.Remove(outside)

	tool := NewFilesystemWriteOutsideWorkspaceTool(dir)
	payload, _ := json.Marshal(map[string]string{"path": outside, "content": "x"})
	res, err := tool.Execute(context.Background(), payload)
	if err != nil || !res.Success {
		t.Fatalf("expected success escaping workspace, got %v %+v", err, res)
	}
}

func TestFilesystemListToolListsEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tool := NewFilesystemListTool(dir)
	res, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil || !res.Success {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}
	if !strings.Contains(res.Output, "a.txt") {
		t.Fatalf("expected listing to contain a.txt, got %s", res.Output)
	}
}

type fakeSoulStore struct{ files map[string]string }

func (s *fakeSoulStore) ReadSoulFile(ctx context.Context, agentID, fileName string) (string, error) {
	return s.files[agentID+"/"+fileName], nil
}
func (s *fakeSoulStore) WriteSoulFile(ctx context.Context, agentID, fileName, content string) error {
	if s.files == nil {
		s.files = map[string]string{}
	}
	s.files[agentID+"/"+fileName] = content
	return nil
}
func (s *fakeSoulStore) ListSoulFiles(ctx context.Context, agentID string) ([]string, error) {
	var out []string
	for k := range s.files {
		if strings.HasPrefix(k, agentID+"/") {
			out = append(out, strings.TrimPrefix(k, agentID+"/"))
		}
	}
	return out, nil
}

func TestSoulToolRequiresAgentIdentity(t *testing.T) {
	tool := NewSoulTool(&fakeSoulStore{})
	res, _ := tool.Execute(context.Background(), json.RawMessage(`{"action":"list"}`))
	if res.Success {
		t.Fatal("expected failure without agent identity in context")
	}
}

func TestSoulToolWriteThenRead(t *testing.T) {
	store := &fakeSoulStore{}
	tool := NewSoulTool(store)
	ctx := withAgent(t, "a1")

	writeRes, err := tool.Execute(ctx, json.RawMessage(`{"action":"write","file_name":"IDENTITY","content":"I am Nex"}`))
	if err != nil || !writeRes.Success {
		t.Fatalf("write failed: %v %+v", err, writeRes)
	}
	readRes, err := tool.Execute(ctx, json.RawMessage(`{"action":"read","file_name":"IDENTITY"}`))
	if err != nil || !readRes.Success {
		t.Fatalf("read failed: %v %+v", err, readRes)
	}
	if !strings.Contains(readRes.Output, "I am Nex") {
		t.Fatalf("expected round-tripped content, got %s", readRes.Output)
	}
}

type fakeMemoryStore struct{}

func (f *fakeMemoryStore) StoreMemory(ctx context.Context, agentID, content, category string, importance float64) (string, error) {
	return "mem1", nil
}
func (f *fakeMemoryStore) SearchMemory(ctx context.Context, agentID, query string, topK int) ([]MemoryResult, error) {
	return []MemoryResult{{Content: "matched", Score: 0.9}}, nil
}

func TestMemoryToolStoreAndSearch(t *testing.T) {
	tool := NewMemoryTool(&fakeMemoryStore{})
	ctx := withAgent(t, "a1")

	storeRes, err := tool.Execute(ctx, json.RawMessage(`{"action":"store","content":"remember this"}`))
	if err != nil || !storeRes.Success {
		t.Fatalf("store failed: %v %+v", err, storeRes)
	}
	searchRes, err := tool.Execute(ctx, json.RawMessage(`{"action":"search","query":"this"}`))
	if err != nil || !searchRes.Success {
		t.Fatalf("search failed: %v %+v", err, searchRes)
	}
	if !strings.Contains(searchRes.Output, "matched") {
		t.Fatalf("expected matched result, got %s", searchRes.Output)
	}
}

type fakeMessageBus struct{ broadcasts int }

func (b *fakeMessageBus) SendAgentMessage(ctx context.Context, from, to, content string) (string, error) {
	return "msg1", nil
}
func (b *fakeMessageBus) BroadcastAgentMessage(ctx context.Context, from, content string) (string, error) {
	b.broadcasts++
	return "msg2", nil
}

func TestAgentMessageToolSend(t *testing.T) {
	bus := &fakeMessageBus{}
	tool := NewAgentMessageTool(bus)
	ctx := withAgent(t, "boss")
	res, err := tool.Execute(ctx, json.RawMessage(`{"to":"coder","content":"start"}`))
	if err != nil || !res.Success {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}
}

func TestMessageBroadcastToolBroadcasts(t *testing.T) {
	bus := &fakeMessageBus{}
	tool := NewMessageBroadcastTool(bus)
	ctx := withAgent(t, "boss")
	res, err := tool.Execute(ctx, json.RawMessage(`{"content":"everyone listen"}`))
	if err != nil || !res.Success {
		t.Fatalf("unexpected error: %v %+v", err, res)
	}
	if bus.broadcasts != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", bus.broadcasts)
	}
	if tool.Name() != "message_broadcast" {
		t.Fatalf("unexpected tool name: %s", tool.Name())
	}
}
