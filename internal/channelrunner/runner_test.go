package channelrunner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/apperr"
	"github.com/nexuscore/agentrt/internal/usage"
	"github.com/nexuscore/agentrt/pkg/models"
)

type fakeSessionStore struct {
	mu    sync.Mutex
	byKey map[string]*models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{byKey: make(map[string]*models.Session)}
}

func (s *fakeSessionStore) GetOrCreate(ctx context.Context, key string, agentID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byKey[key]; ok {
		return sess, nil
	}
	sess := &models.Session{ID: "sess-1", AgentID: agentID, Key: key}
	s.byKey[key] = sess
	return sess, nil
}

type fakeHistoryStore struct {
	mu   sync.Mutex
	byID map[string][]*models.Message
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{byID: make(map[string][]*models.Message)}
}

func (m *fakeHistoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Message, len(m.byID[sessionID]))
	copy(out, m.byID[sessionID])
	return out, nil
}

func (m *fakeHistoryStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[sessionID] = append(m.byID[sessionID], msg)
	return nil
}

type scriptedProvider struct {
	resp *agent.CompletionResponse
	err  error
}

func (p *scriptedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}
func (p *scriptedProvider) Name() string          { return "scripted" }
func (p *scriptedProvider) Models() []agent.Model { return nil }
func (p *scriptedProvider) SupportsTools() bool   { return true }

func newTestRunner(provider agent.LLMProvider, access *AccessController) (*Runner, *fakeSessionStore) {
	loop := &agent.Loop{
		Provider:   provider,
		Sessions:   newFakeHistoryStore(),
		Registry:   agent.NewToolRegistry(),
		Dispatcher: agent.NewDispatcher(nil, nil, nil, nil),
		Usage:      usage.NewTracker(),
		Config:     agent.DefaultLoopConfig(),
	}
	sessionStore := newFakeSessionStore()
	runner := NewRunner(sessionStore, loop, access, "you are a helpful assistant", "test-model", nil)
	return runner, sessionStore
}

func TestRunnerResolvesSessionAndReturnsLoopText(t *testing.T) {
	provider := &scriptedProvider{resp: &agent.CompletionResponse{Text: "hello from the channel"}}
	runner, sessions := newTestRunner(provider, NewAccessController(NewMemoryStore()))

	text, err := runner.Run(context.Background(), "discord", "you are replying in #general", "hi there", "user-1", "agent-1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if text != "hello from the channel" {
		t.Fatalf("unexpected reply text: %q", text)
	}

	key := "agent-1:discord:user-1"
	if _, ok := sessions.byKey[key]; !ok {
		t.Fatalf("expected session created under key %q", key)
	}
}

func TestRunnerDeniesAccessWhenControllerRejects(t *testing.T) {
	store := NewMemoryStore()
	store.SetConfig(context.Background(), &ChannelConfig{Tag: "slack", Policy: PolicyAllowlist})
	runner, _ := newTestRunner(&scriptedProvider{resp: &agent.CompletionResponse{Text: "unused"}}, NewAccessController(store))

	_, err := runner.Run(context.Background(), "slack", "", "hi", "stranger", "agent-1")
	if err == nil {
		t.Fatal("expected access-denied error")
	}
	var denied *AccessDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *AccessDeniedError, got %T: %v", err, err)
	}
}

func TestRunnerPropagatesClassifiedProviderError(t *testing.T) {
	providerErr := apperr.Provider(apperr.ProviderRateLimit, 429, errors.New("too many requests"))
	runner, _ := newTestRunner(&scriptedProvider{err: providerErr}, NewAccessController(NewMemoryStore()))

	_, err := runner.Run(context.Background(), "discord", "", "hi", "user-1", "agent-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if ae.ProviderSub != apperr.ProviderRateLimit {
		t.Fatalf("expected rate-limit sub-kind preserved, got %v", ae.ProviderSub)
	}
}
