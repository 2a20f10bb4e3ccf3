package discordadapter

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

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

type fakeHistoryStore struct {
	mu   sync.Mutex
	byID map[string][]*models.Message
}

func (m *fakeHistoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	return nil, nil
}

func (m *fakeHistoryStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	return nil
}

type scriptedProvider struct{ text string }

func (p *scriptedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	return &agent.CompletionResponse{Text: p.text}, nil
}
func (p *scriptedProvider) Name() string          { return "scripted" }
func (p *scriptedProvider) Models() []agent.Model { return nil }
func (p *scriptedProvider) SupportsTools() bool   { return true }

type fakeDiscordSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeDiscordSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: "msg-1", ChannelID: channelID, Content: content}, nil
}

func (f *fakeDiscordSender) Close() error { return nil }

func newTestAdapter(t *testing.T, cfg Config, access *channelrunner.AccessController) (*Adapter, *fakeDiscordSender) {
	t.Helper()
	loop := &agent.Loop{
		Provider:   &scriptedProvider{text: "hello from discord"},
		Sessions:   &fakeHistoryStore{},
		Registry:   agent.NewToolRegistry(),
		Dispatcher: agent.NewDispatcher(nil, nil, nil, nil),
		Usage:      usage.NewTracker(),
		Config:     agent.DefaultLoopConfig(),
	}
	runner := channelrunner.NewRunner(&fakeSessionStore{}, loop, access, "you are helpful", "test-model", nil)

	cfg.AgentID = "agent-1"
	adapter, err := New(cfg, runner)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sender := &fakeDiscordSender{}
	adapter.session = sender
	return adapter, sender
}

func TestHandleMessageRepliesThroughRunner(t *testing.T) {
	adapter, sender := newTestAdapter(t, Config{Token: "tok"}, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))

	adapter.handleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   "hi there",
		Author:    &discordgo.User{ID: "user-1", Bot: false},
	}})

	if len(sender.sent) != 1 || sender.sent[0] != "hello from discord" {
		t.Fatalf("expected a reply to be sent, got %v", sender.sent)
	}
}

func TestHandleMessageIgnoresBotAuthors(t *testing.T) {
	adapter, sender := newTestAdapter(t, Config{Token: "tok"}, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))

	adapter.handleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   "hi there",
		Author:    &discordgo.User{ID: "bot-1", Bot: true},
	}})

	if len(sender.sent) != 0 {
		t.Fatalf("expected no reply for a bot message, got %v", sender.sent)
	}
}

func TestHandleMessageSendsDenialReasonWhenAccessDenied(t *testing.T) {
	store := channelrunner.NewMemoryStore()
	if err := store.SetConfig(context.Background(), &channelrunner.ChannelConfig{Tag: "discord", Policy: channelrunner.PolicyAllowlist}); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	adapter, sender := newTestAdapter(t, Config{Token: "tok"}, channelrunner.NewAccessController(store))

	adapter.handleMessage(&discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "chan-1",
		Content:   "hi there",
		Author:    &discordgo.User{ID: "stranger", Bot: false},
	}})

	if len(sender.sent) != 1 || sender.sent[0] != "you are not on this channel's allowlist" {
		t.Fatalf("expected the denial reason to be relayed back, got %v", sender.sent)
	}
}

func TestNewRejectsMissingToken(t *testing.T) {
	loop := &agent.Loop{}
	runner := channelrunner.NewRunner(&fakeSessionStore{}, loop, channelrunner.NewAccessController(channelrunner.NewMemoryStore()), "", "", nil)
	if _, err := New(Config{AgentID: "agent-1"}, runner); err == nil {
		t.Fatal("expected error for missing token")
	}
}
