package nostradapter

import (
	"context"
	"sync"
	"testing"

	"github.com/nbd-wtf/go-nostr"

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

type fakeRelay struct {
	mu        sync.Mutex
	published []nostr.Event
	publishErr error
}

func (f *fakeRelay) Subscribe(ctx context.Context, filters nostr.Filters) (*nostr.Subscription, error) {
	return &nostr.Subscription{Events: make(chan *nostr.Event)}, nil
}

func (f *fakeRelay) Publish(ctx context.Context, event nostr.Event) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, event)
	return nil
}

func (f *fakeRelay) Close() error { return nil }

// testPrivateKeyHex is a fixed throwaway private key; newTestAdapter
// generates a fresh key for the bot's identity instead of using it.
const testPrivateKeyHex = "0000000000000000000000000000000000000000000000000000000000001"

func newTestAdapter(t *testing.T, access *channelrunner.AccessController) (*Adapter, *fakeRelay) {
	t.Helper()
	priv := nostr.GeneratePrivateKey()
	loop := &agent.Loop{
		Provider:   &scriptedProvider{text: "hello from nostr"},
		Sessions:   fakeHistoryStore{},
		Registry:   agent.NewToolRegistry(),
		Dispatcher: agent.NewDispatcher(nil, nil, nil, nil),
		Usage:      usage.NewTracker(),
		Config:     agent.DefaultLoopConfig(),
	}
	runner := channelrunner.NewRunner(&fakeSessionStore{}, loop, access, "you are helpful", "test-model", nil)

	adapter, err := New(Config{PrivateKey: priv, AgentID: "agent-1"}, runner)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	relay := &fakeRelay{}
	adapter.relays = []relayConn{relay}
	return adapter, relay
}

func TestHandleMessageEncryptsAndPublishesReply(t *testing.T) {
	adapter, relay := newTestAdapter(t, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))
	senderPriv := nostr.GeneratePrivateKey()
	senderPub, _ := nostr.GetPublicKey(senderPriv)

	adapter.handleMessage(context.Background(), senderPub, "hi there")

	if len(relay.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(relay.published))
	}
	if relay.published[0].Kind != 4 {
		t.Fatalf("expected kind 4 encrypted DM, got %d", relay.published[0].Kind)
	}
}

func TestHandleMessageIgnoresEmptyText(t *testing.T) {
	adapter, relay := newTestAdapter(t, channelrunner.NewAccessController(channelrunner.NewMemoryStore()))
	senderPriv := nostr.GeneratePrivateKey()
	senderPub, _ := nostr.GetPublicKey(senderPriv)

	adapter.handleMessage(context.Background(), senderPub, "")

	if len(relay.published) != 0 {
		t.Fatalf("expected no reply for empty text, got %d", len(relay.published))
	}
}

func TestHandleMessageSendsDenialReasonWhenAccessDenied(t *testing.T) {
	store := channelrunner.NewMemoryStore()
	if err := store.SetConfig(context.Background(), &channelrunner.ChannelConfig{Tag: "nostr", Policy: channelrunner.PolicyAllowlist}); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	adapter, relay := newTestAdapter(t, channelrunner.NewAccessController(store))
	senderPriv := nostr.GeneratePrivateKey()
	senderPub, _ := nostr.GetPublicKey(senderPriv)

	adapter.handleMessage(context.Background(), senderPub, "hi there")

	if len(relay.published) != 1 {
		t.Fatalf("expected a denial reply to be published, got %d", len(relay.published))
	}
}

func TestNewRejectsInvalidPrivateKey(t *testing.T) {
	loop := &agent.Loop{}
	runner := channelrunner.NewRunner(&fakeSessionStore{}, loop, channelrunner.NewAccessController(channelrunner.NewMemoryStore()), "", "", nil)
	if _, err := New(Config{PrivateKey: "not-a-key", AgentID: "agent-1"}, runner); err == nil {
		t.Fatal("expected error for invalid private key")
	}
}
