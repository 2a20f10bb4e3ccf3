package tasks

import (
	"context"
	"sync"
	"testing"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/usage"
	"github.com/nexuscore/agentrt/pkg/models"
)

type fakeSessionStore struct {
	mu   sync.Mutex
	byID map[string][]*models.Message
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{byID: make(map[string][]*models.Message)}
}

func (s *fakeSessionStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, len(s.byID[sessionID]))
	copy(out, s.byID[sessionID])
	return out, nil
}

func (s *fakeSessionStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sessionID] = append(s.byID[sessionID], msg)
	return nil
}

type fakeProvider struct{ text string }

func (p *fakeProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	return &agent.CompletionResponse{Text: p.text}, nil
}
func (p *fakeProvider) Name() string          { return "fake" }
func (p *fakeProvider) Models() []agent.Model { return nil }
func (p *fakeProvider) SupportsTools() bool   { return true }

func newTestLoop(text string) *agent.Loop {
	return &agent.Loop{
		Provider:   &fakeProvider{text: text},
		Sessions:   newFakeSessionStore(),
		Registry:   agent.NewToolRegistry(),
		Dispatcher: agent.NewDispatcher(nil, nil, nil, nil),
		Usage:      usage.NewTracker(),
		Config:     agent.DefaultLoopConfig(),
	}
}

func TestLoopExecutorRunsEveryAssignedAgent(t *testing.T) {
	loop := newTestLoop("acknowledged")
	executor := NewLoopExecutor(loop, "you run scheduled tasks.", "claude-sonnet", nil)

	task := &models.Task{ID: "t1", Description: "check the dashboards", AssignedAgents: []string{"coder", "reviewer"}}
	if err := executor.Execute(context.Background(), task); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	sessions := loop.Sessions.(*fakeSessionStore)
	if len(sessions.byID["task-t1-coder"]) == 0 || len(sessions.byID["task-t1-reviewer"]) == 0 {
		t.Fatalf("expected both agent sessions to receive messages: %+v", sessions.byID)
	}
}

func TestLoopExecutorRejectsUnassignedTask(t *testing.T) {
	loop := newTestLoop("n/a")
	executor := NewLoopExecutor(loop, "", "", nil)
	task := &models.Task{ID: "t2", Description: "orphan"}
	if err := executor.Execute(context.Background(), task); err == nil {
		t.Fatal("expected error for task with no assigned agent")
	}
}
