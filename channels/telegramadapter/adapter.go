// Package telegramadapter bridges Telegram DMs to the Channel Agent Runner
// (spec §4.K). Grounded on the teacher's internal/channels/telegram
// adapter, trimmed to long-polling only (the teacher's webhook mode needs
// an HTTP listener this minimal service doesn't stand up) and to a thin
// ChannelAdapter with no reconnect/backoff machinery of its own.
package telegramadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/nexuscore/agentrt/internal/apperr"
	"github.com/nexuscore/agentrt/internal/channelrunner"
)

// Config configures the Telegram adapter.
type Config struct {
	Token           string
	AgentID         string
	ChannelTag      string // defaults to "telegram"
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
		c.ChannelTag = "telegram"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// telegramSender is the slice of *bot.Bot the adapter calls to reply.
type telegramSender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error)
}

// Adapter implements channelrunner.ChannelAdapter for Telegram long polling.
type Adapter struct {
	cfg    Config
	runner *channelrunner.Runner
	bot    telegramSender
	cancel context.CancelFunc
	logger *slog.Logger
}

var _ channelrunner.ChannelAdapter = (*Adapter)(nil)

// New constructs a Telegram adapter bound to runner.
func New(cfg Config, runner *channelrunner.Runner) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "telegramadapter.New", err)
	}
	if runner == nil {
		return nil, apperr.New(apperr.KindConfig, "telegramadapter.New", fmt.Errorf("runner is required"))
	}
	return &Adapter{cfg: cfg, runner: runner, logger: cfg.Logger.With("adapter", "telegram")}, nil
}

// Tag returns the channel tag used for session keys and access control.
func (a *Adapter) Tag() string { return a.cfg.ChannelTag }

// Start creates the bot client and begins long polling in a background
// goroutine.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	b, err := tgbot.New(a.cfg.Token, tgbot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		cancel()
		return apperr.New(apperr.KindChannel, "telegram bot.New", err)
	}
	a.bot = b

	go b.Start(runCtx)
	a.logger.Info("telegram adapter started")
	return nil
}

// Stop cancels the long-polling loop.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) handleUpdate(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.From.IsBot || update.Message.Text == "" {
		return
	}
	a.handleMessage(ctx, update.Message)
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	userID := fmt.Sprintf("%d", msg.From.ID)
	reply, err := a.runner.Run(ctx, a.cfg.ChannelTag, a.cfg.ContextPreamble, msg.Text, userID, a.cfg.AgentID)
	if err != nil {
		var denied *channelrunner.AccessDeniedError
		if errors.As(err, &denied) {
			a.logger.Info("dm denied", "user_id", userID, "reason", denied.Message)
			if denied.Message != "" {
				a.send(ctx, msg.Chat.ID, denied.Message)
			}
			return
		}
		a.logger.Error("run failed", "user_id", userID, "error", err)
		return
	}
	if reply == "" {
		return
	}
	a.send(ctx, msg.Chat.ID, reply)
}

func (a *Adapter) send(ctx context.Context, chatID int64, text string) {
	if a.bot == nil {
		return
	}
	if _, err := a.bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		a.logger.Error("send failed", "chat_id", chatID, "error", err)
	}
}
