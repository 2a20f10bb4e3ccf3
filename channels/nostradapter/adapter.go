// Package nostradapter bridges NIP-04 encrypted Nostr DMs to the Channel
// Agent Runner (spec §4.K). Grounded on the teacher's internal/channels/nostr
// adapter (relay subscription, NIP-04 shared-secret decrypt/encrypt, event
// signing and publish), trimmed to a thin ChannelAdapter: a single relay
// set, no rate limiter, no health-metrics bookkeeping, and an in-memory
// event-id set (Adapter.seen) that drops events already handled.
package nostradapter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/nexuscore/agentrt/internal/apperr"
	"github.com/nexuscore/agentrt/internal/channelrunner"
)

// DefaultRelays are used when Config.Relays is empty.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
}

// Config configures the Nostr adapter.
type Config struct {
	PrivateKey      string // hex or nsec
	Relays          []string
	AgentID         string
	ChannelTag      string // defaults to "nostr"
	ContextPreamble string
	Logger          *slog.Logger
}

func (c *Config) validate() (string, error) {
	if c.PrivateKey == "" {
		return "", fmt.Errorf("private_key is required")
	}
	key, err := parsePrivateKey(c.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	if c.AgentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}
	if c.ChannelTag == "" {
		c.ChannelTag = "nostr"
	}
	if len(c.Relays) == 0 {
		c.Relays = DefaultRelays
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return key, nil
}

// relayConn is the slice of *nostr.Relay the adapter drives.
type relayConn interface {
	Subscribe(ctx context.Context, filters nostr.Filters) (*nostr.Subscription, error)
	Publish(ctx context.Context, event nostr.Event) error
	Close() error
}

// Adapter implements channelrunner.ChannelAdapter for Nostr NIP-04 DMs.
type Adapter struct {
	cfg        Config
	runner     *channelrunner.Runner
	privateKey string
	publicKey  string
	relays     []relayConn
	seen       sync.Map
	cancel     context.CancelFunc
	logger     *slog.Logger
}

var _ channelrunner.ChannelAdapter = (*Adapter)(nil)

// New constructs a Nostr adapter bound to runner.
func New(cfg Config, runner *channelrunner.Runner) (*Adapter, error) {
	privateKey, err := cfg.validate()
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "nostradapter.New", err)
	}
	if runner == nil {
		return nil, apperr.New(apperr.KindConfig, "nostradapter.New", fmt.Errorf("runner is required"))
	}
	publicKey, err := nostr.GetPublicKey(privateKey)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "nostradapter.New", fmt.Errorf("derive public key: %w", err))
	}
	return &Adapter{
		cfg:        cfg,
		runner:     runner,
		privateKey: privateKey,
		publicKey:  publicKey,
		logger:     cfg.Logger.With("adapter", "nostr", "pubkey", shorten(publicKey)),
	}, nil
}

// Tag returns the channel tag used for session keys and access control.
func (a *Adapter) Tag() string { return a.cfg.ChannelTag }

// Start connects to every configured relay and subscribes to encrypted DMs
// addressed to the bot's public key.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, url := range a.cfg.Relays {
		relay, err := nostr.RelayConnect(runCtx, url)
		if err != nil {
			a.logger.Warn("failed to connect to relay", "relay", url, "error", err)
			continue
		}
		a.relays = append(a.relays, relay)
	}
	if len(a.relays) == 0 {
		cancel()
		return apperr.New(apperr.KindChannel, "nostr connect", fmt.Errorf("failed to connect to any relay"))
	}

	for _, relay := range a.relays {
		go a.subscribe(runCtx, relay)
	}

	a.logger.Info("nostr adapter started", "relays", len(a.relays))
	return nil
}

// Stop closes every relay connection.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	for _, relay := range a.relays {
		if err := relay.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Adapter) subscribe(ctx context.Context, relay relayConn) {
	since := nostr.Timestamp(time.Now().Add(-2 * time.Minute).Unix())
	filters := nostr.Filters{{
		Kinds: []int{4},
		Tags:  nostr.TagMap{"p": []string{a.publicKey}},
		Since: &since,
	}}

	sub, err := relay.Subscribe(ctx, filters)
	if err != nil {
		a.logger.Error("failed to subscribe to relay", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			sub.Unsub()
			return
		case event := <-sub.Events:
			if event == nil {
				continue
			}
			a.handleEvent(ctx, event)
		}
	}
}

func (a *Adapter) handleEvent(ctx context.Context, event *nostr.Event) {
	if _, loaded := a.seen.LoadOrStore(event.ID, true); loaded {
		return
	}
	if event.PubKey == a.publicKey {
		return
	}
	if ok, err := event.CheckSignature(); err != nil || !ok {
		a.logger.Warn("invalid event signature", "event_id", event.ID)
		return
	}

	sharedSecret, err := nip04.ComputeSharedSecret(event.PubKey, a.privateKey)
	if err != nil {
		a.logger.Warn("failed to compute shared secret", "sender", shorten(event.PubKey), "error", err)
		return
	}
	plaintext, err := nip04.Decrypt(event.Content, sharedSecret)
	if err != nil {
		a.logger.Warn("failed to decrypt message", "sender", shorten(event.PubKey), "error", err)
		return
	}

	a.handleMessage(ctx, event.PubKey, plaintext)
}

func (a *Adapter) handleMessage(ctx context.Context, senderPubkey, text string) {
	if text == "" {
		return
	}
	reply, err := a.runner.Run(ctx, a.cfg.ChannelTag, a.cfg.ContextPreamble, text, senderPubkey, a.cfg.AgentID)
	if err != nil {
		var denied *channelrunner.AccessDeniedError
		if errors.As(err, &denied) {
			a.logger.Info("dm denied", "sender", shorten(senderPubkey), "reason", denied.Message)
			if denied.Message != "" {
				a.send(ctx, senderPubkey, denied.Message)
			}
			return
		}
		a.logger.Error("run failed", "sender", shorten(senderPubkey), "error", err)
		return
	}
	if reply == "" {
		return
	}
	a.send(ctx, senderPubkey, reply)
}

func (a *Adapter) send(ctx context.Context, toPubkey, text string) {
	sharedSecret, err := nip04.ComputeSharedSecret(toPubkey, a.privateKey)
	if err != nil {
		a.logger.Error("failed to compute shared secret", "to", shorten(toPubkey), "error", err)
		return
	}
	ciphertext, err := nip04.Encrypt(text, sharedSecret)
	if err != nil {
		a.logger.Error("failed to encrypt message", "to", shorten(toPubkey), "error", err)
		return
	}

	event := nostr.Event{
		PubKey:    a.publicKey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      4,
		Tags:      nostr.Tags{{"p", toPubkey}},
		Content:   ciphertext,
	}
	if err := event.Sign(a.privateKey); err != nil {
		a.logger.Error("failed to sign event", "error", err)
		return
	}

	for _, relay := range a.relays {
		if err := relay.Publish(ctx, event); err != nil {
			a.logger.Warn("failed to publish to relay", "error", err)
			continue
		}
		return
	}
	a.logger.Error("failed to publish to any relay", "to", shorten(toPubkey))
}

func shorten(pubkey string) string {
	if len(pubkey) < 16 {
		return pubkey
	}
	return pubkey[:16] + "..."
}

func parsePrivateKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if strings.HasPrefix(trimmed, "nsec1") {
		prefix, data, err := nip19.Decode(trimmed)
		if err != nil {
			return "", fmt.Errorf("invalid nsec key: %w", err)
		}
		if prefix != "nsec" {
			return "", fmt.Errorf("invalid key type: expected nsec, got %s", prefix)
		}
		hexKey, ok := data.(string)
		if !ok {
			return "", fmt.Errorf("invalid nsec key type: %T", data)
		}
		return hexKey, nil
	}
	if len(trimmed) != 64 {
		return "", fmt.Errorf("private key must be 64 hex characters or nsec format")
	}
	if _, err := hex.DecodeString(trimmed); err != nil {
		return "", fmt.Errorf("invalid hex key: %w", err)
	}
	return trimmed, nil
}
