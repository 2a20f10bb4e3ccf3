// Package slackadapter bridges Slack DMs, mentions, and thread replies to
// the Channel Agent Runner (spec §4.K). Grounded on the teacher's
// internal/channels/slack adapter (Socket Mode, slackevents dispatch,
// DM/mention/thread-reply filtering), trimmed to a thin ChannelAdapter with
// no status-channel bookkeeping of its own.
package slackadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/nexuscore/agentrt/internal/apperr"
	"github.com/nexuscore/agentrt/internal/channelrunner"
)

// Config configures the Slack adapter.
type Config struct {
	BotToken        string // xoxb- token for API calls
	AppToken        string // xapp- token for Socket Mode
	AgentID         string
	ChannelTag      string // defaults to "slack"
	ContextPreamble string
	Logger          *slog.Logger
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot_token is required")
	}
	if c.AppToken == "" {
		return fmt.Errorf("app_token is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if c.ChannelTag == "" {
		c.ChannelTag = "slack"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// slackSender is the slice of *slack.Client the adapter calls to reply.
type slackSender interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// socketRunner is the slice of *socketmode.Client the adapter drives.
type socketRunner interface {
	Run() error
	Ack(req socketmode.Request, payload ...any)
}

// Adapter implements channelrunner.ChannelAdapter for Slack Socket Mode.
type Adapter struct {
	cfg       Config
	runner    *channelrunner.Runner
	client    slackSender
	socket    socketRunner
	events    <-chan socketmode.Event
	botUserID string
	cancel    context.CancelFunc
	logger    *slog.Logger
}

var _ channelrunner.ChannelAdapter = (*Adapter)(nil)

// New constructs a Slack adapter bound to runner.
func New(cfg Config, runner *channelrunner.Runner) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "slackadapter.New", err)
	}
	if runner == nil {
		return nil, apperr.New(apperr.KindConfig, "slackadapter.New", fmt.Errorf("runner is required"))
	}
	return &Adapter{cfg: cfg, runner: runner, logger: cfg.Logger.With("adapter", "slack")}, nil
}

// Tag returns the channel tag used for session keys and access control.
func (a *Adapter) Tag() string { return a.cfg.ChannelTag }

// Start authenticates, opens a Socket Mode connection, and begins
// dispatching events in a background goroutine.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	client := slack.New(a.cfg.BotToken, slack.OptionAppLevelToken(a.cfg.AppToken))
	socketClient := socketmode.New(client)

	auth, err := client.AuthTestContext(runCtx)
	if err != nil {
		cancel()
		return apperr.New(apperr.KindChannel, "slack auth", err)
	}
	a.botUserID = auth.UserID
	a.client = client
	a.socket = socketClient
	a.events = socketClient.Events

	go func() {
		if err := socketClient.RunContext(runCtx); err != nil {
			a.logger.Error("socket mode stopped", "error", err)
		}
	}()
	go a.dispatch(runCtx)

	a.logger.Info("slack adapter started", "bot_user_id", a.botUserID)
	return nil
}

// Stop cancels the event dispatch loop and the Socket Mode connection.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-a.events:
			if !ok {
				return
			}
			if event.Type != socketmode.EventTypeEventsAPI {
				if event.Request != nil {
					a.socket.Ack(*event.Request)
				}
				continue
			}
			outer, ok := event.Data.(slackevents.EventsAPIEvent)
			a.socket.Ack(*event.Request)
			if !ok || outer.Type != slackevents.CallbackEvent {
				continue
			}
			switch ev := outer.InnerEvent.Data.(type) {
			case *slackevents.AppMentionEvent:
				a.handleMention(ctx, ev)
			case *slackevents.MessageEvent:
				if ev.BotID != "" {
					continue
				}
				if ev.SubType != "" && ev.SubType != "file_share" {
					continue
				}
				a.handleMessage(ctx, ev.Channel, ev.User, ev.Text, ev.ThreadTimeStamp, ev.TimeStamp)
			}
		}
	}
}

func (a *Adapter) handleMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	a.handleMessage(ctx, ev.Channel, ev.User, ev.Text, ev.ThreadTimeStamp, ev.TimeStamp)
}

// handleMessage processes a DM, mention, or thread reply. Other channel
// chatter is ignored, matching the teacher's filter.
func (a *Adapter) handleMessage(ctx context.Context, channel, user, text, threadTS, ts string) {
	isDM := strings.HasPrefix(channel, "D")
	isMention := strings.Contains(text, fmt.Sprintf("<@%s>", a.botUserID))
	if !isDM && !isMention && threadTS == "" {
		return
	}
	text = stripMentions(text)
	if text == "" || user == "" {
		return
	}

	reply, err := a.runner.Run(ctx, a.cfg.ChannelTag, a.cfg.ContextPreamble, text, user, a.cfg.AgentID)
	if err != nil {
		var denied *channelrunner.AccessDeniedError
		if errors.As(err, &denied) {
			a.logger.Info("message denied", "user_id", user, "reason", denied.Message)
			if denied.Message != "" {
				a.send(ctx, channel, threadTS, denied.Message)
			}
			return
		}
		a.logger.Error("run failed", "user_id", user, "error", err)
		return
	}
	if reply == "" {
		return
	}
	a.send(ctx, channel, threadTS, reply)
}

func (a *Adapter) send(ctx context.Context, channel, threadTS, text string) {
	if a.client == nil {
		return
	}
	options := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := a.client.PostMessageContext(ctx, channel, options...); err != nil {
		a.logger.Error("send failed", "channel", channel, "error", err)
	}
}

func stripMentions(text string) string {
	for strings.Contains(text, "<@") {
		start := strings.Index(text, "<@")
		end := strings.Index(text[start:], ">")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+1:]
	}
	return strings.TrimSpace(text)
}
