// Package discordadapter bridges Discord DMs to the Channel Agent Runner
// (spec §4.K). Grounded on the teacher's internal/channels/discord adapter,
// trimmed to a thin ChannelAdapter: no reconnect/backoff/rate-limit
// machinery of its own, since the runner it drives already classifies and
// surfaces provider failures (internal/apperr) and spec §4.K only asks for
// the wire contract, not a production-grade Discord client.
package discordadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nexuscore/agentrt/internal/apperr"
	"github.com/nexuscore/agentrt/internal/channelrunner"
)

// Config configures the Discord adapter.
type Config struct {
	Token           string
	AgentID         string
	ChannelTag      string // defaults to "discord"
	ContextPreamble string
	Logger          *slog.Logger
}

func (c *Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if c.ChannelTag == "" {
		c.ChannelTag = "discord"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// discordSender is the slice of *discordgo.Session the adapter actually
// calls, narrowed the way the teacher's discordSession interface narrows
// it, so tests can substitute a fake instead of opening a real session.
type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Adapter implements channelrunner.ChannelAdapter for Discord.
type Adapter struct {
	cfg     Config
	runner  *channelrunner.Runner
	session discordSender
	logger  *slog.Logger
}

var _ channelrunner.ChannelAdapter = (*Adapter)(nil)

// New constructs a Discord adapter bound to runner.
func New(cfg Config, runner *channelrunner.Runner) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "discordadapter.New", err)
	}
	if runner == nil {
		return nil, apperr.New(apperr.KindConfig, "discordadapter.New", fmt.Errorf("runner is required"))
	}
	return &Adapter{cfg: cfg, runner: runner, logger: cfg.Logger.With("adapter", "discord")}, nil
}

// Tag returns the channel tag used for session keys and access control.
func (a *Adapter) Tag() string { return a.cfg.ChannelTag }

// Start opens the bot's Discord session and begins handling DMs.
func (a *Adapter) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + a.cfg.Token)
	if err != nil {
		return apperr.New(apperr.KindChannel, "discord session", err)
	}
	session.Identify.Intents |= discordgo.IntentsDirectMessages
	session.AddHandler(a.handleMessageCreate)

	if err := session.Open(); err != nil {
		return apperr.New(apperr.KindChannel, "discord open", err)
	}
	a.session = session
	a.logger.Info("discord adapter started")
	return nil
}

// Stop closes the Discord session.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	if err := a.session.Close(); err != nil {
		return apperr.New(apperr.KindChannel, "discord close", err)
	}
	return nil
}

func (a *Adapter) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	a.handleMessage(m)
}

func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Content == "" {
		return
	}

	reply, err := a.runner.Run(context.Background(), a.cfg.ChannelTag, a.cfg.ContextPreamble, m.Content, m.Author.ID, a.cfg.AgentID)
	if err != nil {
		var denied *channelrunner.AccessDeniedError
		if errors.As(err, &denied) {
			a.logger.Info("dm denied", "user_id", m.Author.ID, "reason", denied.Message)
			if denied.Message != "" && a.session != nil {
				_, _ = a.session.ChannelMessageSend(m.ChannelID, denied.Message)
			}
			return
		}
		a.logger.Error("run failed", "user_id", m.Author.ID, "error", err)
		return
	}
	if reply == "" || a.session == nil {
		return
	}
	if _, err := a.session.ChannelMessageSend(m.ChannelID, reply); err != nil {
		a.logger.Error("send failed", "channel_id", m.ChannelID, "error", err)
	}
}
