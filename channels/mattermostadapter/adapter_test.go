package mattermostadapter

import (
	"context"
	"sync"
	"testing"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/channelrunner"
	"github.com/nexuscore/agentrt/internal/usage"
	"github.com/nexuscore/agentrt/pkg/models"
)

type fakeSessionStore struct {
	mu    sync.Mutex
	byKey map[string]*models.Session
}

func (s *fakeSessionStore) GetOrCreate(ctx context.Context, key string, agentID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byKey == nil {
		s.byKey = make(map[string]*models.Session)
	}
	if sess, ok := s.byKey[key]; ok {
		return sess, nil
	}
	sess := &models.Session{ID: "sess-1", AgentID: agentID, Key: key}
	s.byKey[key] = sess
	return sess, nil
}

type fakeHistoryStore struct{}

func (fakeHistoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	return nil, nil
}
func (fakeHistoryStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	return nil
}

type scriptedProvider struct{ text string }

func (p *scriptedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	return &agent.CompletionResponse{Text: p.text}, nil
}
func (p *scriptedProvider) Name() string          { return "scripted" }
func (p *scriptedProvider) Models() []agent.Model { return nil }
func (p *scriptedProvider) SupportsTools() bool   { return true }

type fakePostSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakePostSender) CreatePost(ctx context.Context, post *model.Post) (*model.Post, *model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, post.Message)
	return &model.Post{Id: "post-1", ChannelId: post.ChannelId, Message: post.Message}, nil, nil
}

func newTestAdapter(t *testing.T, access *channelrunner.AccessController) (*Adapter, *fakePostSender) {
	t.Helper()
	loop := &agent.Loop{
		Provider:   &scriptedProvider{text: "hello from mattermost"},
		Sessions:   fakeHistoryStore{},
		Registry:   agent.NewToolRegistry(),
		Dispatcher: agent.NewDispatcher(nil, nil, nil, nil),
		Usage:      usage.NewTracker(),
		Config:     agent.DefaultLoopConfig(),
	}
	runner := channelrunner.NewRunner(&fakeSessionStore{}, loop, access, "you are helpful", "test-model", nil)

	adapter, err := New(Config{ServerURL: "https://mm.example.com", Token: "tok", AgentID: "agent-1"}, runner)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sender := &fakePostSender{}
	adapter.client = sender
	adapter.botUserID = "bot-1"
	return adapter, sender
}

func TestHandleMessageRepliesThroughRunner(t *testing.T) {
	adapter, sender := newTestAdapter(t, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))

	adapter.handleMessage(context.Background(), "chan-1", "user-1", "hi there", "")

	if len(sender.sent) != 1 || sender.sent[0] != "hello from mattermost" {
		t.Fatalf("expected a reply to be sent, got %v", sender.sent)
	}
}

func TestHandleMessageIgnoresEmptyText(t *testing.T) {
	adapter, sender := newTestAdapter(t, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))

	adapter.handleMessage(context.Background(), "chan-1", "user-1", "", "")

	if len(sender.sent) != 0 {
		t.Fatalf("expected no reply for empty text, got %v", sender.sent)
	}
}

func TestHandleMessageSendsDenialReasonWhenAccessDenied(t *testing.T) {
	store := channelrunner.NewMemoryStore()
	if err := store.SetConfig(context.Background(), &channelrunner.ChannelConfig{Tag: "mattermost", Policy: channelrunner.PolicyAllowlist}); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	adapter, sender := newTestAdapter(t, channelrunner.NewAccessController(store))

	adapter.handleMessage(context.Background(), "chan-1", "user-1", "hi there", "")

	if len(sender.sent) != 1 || sender.sent[0] != "you are not on this channel's allowlist" {
		t.Fatalf("expected the denial reason to be relayed back, got %v", sender.sent)
	}
}

func TestNewRejectsMissingServerURL(t *testing.T) {
	loop := &agent.Loop{}
	runner := channelrunner.NewRunner(&fakeSessionStore{}, loop, channelrunner.NewAccessController(channelrunner.NewMemoryStore()), "", "", nil)
	if _, err := New(Config{Token: "tok", AgentID: "agent-1"}, runner); err == nil {
		t.Fatal("expected error for missing server_url")
	}
}
