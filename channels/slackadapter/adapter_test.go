package slackadapter

import (
	"context"
	"sync"
	"testing"

	"github.com/slack-go/slack"

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

type fakeSlackSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSlackSender) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, channelID)
	return channelID, "123.456", nil
}

func newTestAdapter(t *testing.T, access *channelrunner.AccessController) (*Adapter, *fakeSlackSender) {
	t.Helper()
	loop := &agent.Loop{
		Provider:   &scriptedProvider{text: "hello from slack"},
		Sessions:   fakeHistoryStore{},
		Registry:   agent.NewToolRegistry(),
		Dispatcher: agent.NewDispatcher(nil, nil, nil, nil),
		Usage:      usage.NewTracker(),
		Config:     agent.DefaultLoopConfig(),
	}
	runner := channelrunner.NewRunner(&fakeSessionStore{}, loop, access, "you are helpful", "test-model", nil)

	adapter, err := New(Config{BotToken: "xoxb-tok", AppToken: "xapp-tok", AgentID: "agent-1"}, runner)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sender := &fakeSlackSender{}
	adapter.client = sender
	adapter.botUserID = "U-BOT"
	return adapter, sender
}

func TestHandleMessageRepliesToDirectMessage(t *testing.T) {
	adapter, sender := newTestAdapter(t, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))

	adapter.handleMessage(context.Background(), "D123", "U1", "hi there", "", "1.0")

	if len(sender.sent) != 1 {
		t.Fatalf("expected a reply to be sent, got %v", sender.sent)
	}
}

func TestHandleMessageIgnoresChannelChatterWithoutMentionOrThread(t *testing.T) {
	adapter, sender := newTestAdapter(t, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))

	adapter.handleMessage(context.Background(), "C123", "U1", "just chatting", "", "1.0")

	if len(sender.sent) != 0 {
		t.Fatalf("expected no reply for non-DM/non-mention chatter, got %v", sender.sent)
	}
}

func TestHandleMessageRepliesToMention(t *testing.T) {
	adapter, sender := newTestAdapter(t, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))

	adapter.handleMessage(context.Background(), "C123", "U1", "<@U-BOT> help me", "", "1.0")

	if len(sender.sent) != 1 {
		t.Fatalf("expected a reply for a mention, got %v", sender.sent)
	}
}

func TestHandleMessageSendsDenialReasonWhenAccessDenied(t *testing.T) {
	store := channelrunner.NewMemoryStore()
	if err := store.SetConfig(context.Background(), &channelrunner.ChannelConfig{Tag: "slack", Policy: channelrunner.PolicyAllowlist}); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	adapter, sender := newTestAdapter(t, channelrunner.NewAccessController(store))

	adapter.handleMessage(context.Background(), "D123", "U1", "hi there", "", "1.0")

	if len(sender.sent) != 1 {
		t.Fatalf("expected the denial reason to be relayed back, got %v", sender.sent)
	}
}
