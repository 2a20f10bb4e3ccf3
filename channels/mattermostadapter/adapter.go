// Package mattermostadapter bridges Mattermost DMs, mentions, and thread
// replies to the Channel Agent Runner (spec §4.K). Grounded on the
// teacher's internal/channels/mattermost adapter (WebSocket event loop,
// DM/mention/thread-reply filtering via post.RootId and channel_type),
// trimmed to a thin ChannelAdapter with no rate limiter or health-metrics
// bookkeeping of its own.
package mattermostadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/nexuscore/agentrt/internal/apperr"
	"github.com/nexuscore/agentrt/internal/channelrunner"
)

// Config configures the Mattermost adapter.
type Config struct {
	ServerURL       string
	Token           string // bot token; either Token or Username+Password is required
	Username        string
	Password        string
	AgentID         string
	ChannelTag      string // defaults to "mattermost"
	ContextPreamble string
	Logger          *slog.Logger
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("either token or username/password is required")
	}
	if c.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}
	if c.ChannelTag == "" {
		c.ChannelTag = "mattermost"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// postSender is the slice of *model.Client4 the adapter calls to reply.
type postSender interface {
	CreatePost(ctx context.Context, post *model.Post) (*model.Post, *model.Response, error)
}

// Adapter implements channelrunner.ChannelAdapter for Mattermost.
type Adapter struct {
	cfg       Config
	runner    *channelrunner.Runner
	client    postSender
	ws        *model.WebSocketClient
	botUserID string
	cancel    context.CancelFunc
	logger    *slog.Logger
}

var _ channelrunner.ChannelAdapter = (*Adapter)(nil)

// New constructs a Mattermost adapter bound to runner.
func New(cfg Config, runner *channelrunner.Runner) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "mattermostadapter.New", err)
	}
	if runner == nil {
		return nil, apperr.New(apperr.KindConfig, "mattermostadapter.New", fmt.Errorf("runner is required"))
	}
	return &Adapter{cfg: cfg, runner: runner, logger: cfg.Logger.With("adapter", "mattermost")}, nil
}

// Tag returns the channel tag used for session keys and access control.
func (a *Adapter) Tag() string { return a.cfg.ChannelTag }

// Start authenticates, opens a WebSocket connection, and begins dispatching
// events in a background goroutine.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	client := model.NewAPIv4Client(a.cfg.ServerURL)
	if a.cfg.Token != "" {
		client.SetToken(a.cfg.Token)
		me, _, err := client.GetMe(runCtx, "")
		if err != nil {
			cancel()
			return apperr.New(apperr.KindChannel, "mattermost auth", err)
		}
		a.botUserID = me.Id
	} else {
		user, _, err := client.Login(runCtx, a.cfg.Username, a.cfg.Password)
		if err != nil {
			cancel()
			return apperr.New(apperr.KindChannel, "mattermost login", err)
		}
		a.botUserID = user.Id
	}
	a.client = client

	wsClient, err := model.NewWebSocketClient4(buildWebSocketURL(a.cfg.ServerURL), client.AuthToken)
	if err != nil {
		cancel()
		return apperr.New(apperr.KindChannel, "mattermost websocket", err)
	}
	wsClient.Listen()
	a.ws = wsClient

	go a.dispatch(runCtx)

	a.logger.Info("mattermost adapter started", "bot_user_id", a.botUserID)
	return nil
}

// Stop cancels the dispatch loop and closes the WebSocket connection.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.ws != nil {
		a.ws.Close()
	}
	return nil
}

func (a *Adapter) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-a.ws.EventChannel:
			if !ok {
				return
			}
			if event.EventType() == model.WebsocketEventPosted {
				a.handlePosted(ctx, event)
			}
		case _, ok := <-a.ws.ResponseChannel:
			if !ok {
				return
			}
		}
	}
}

func (a *Adapter) handlePosted(ctx context.Context, event *model.WebSocketEvent) {
	postData := event.GetData()["post"]
	postJSON, ok := postData.(string)
	if !ok {
		return
	}
	var post model.Post
	if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
		a.logger.Warn("failed to parse post", "error", err)
		return
	}
	if post.UserId == a.botUserID {
		return
	}

	channelType, _ := event.GetData()["channel_type"].(string)
	isDM := channelType == "D"
	isMention := strings.Contains(post.Message, "@"+a.botUserID)
	if !isDM && !isMention && post.RootId == "" {
		return
	}

	a.handleMessage(ctx, post.ChannelId, post.UserId, post.Message, post.RootId)
}

func (a *Adapter) handleMessage(ctx context.Context, channelID, userID, text, rootID string) {
	if text == "" || userID == "" {
		return
	}
	reply, err := a.runner.Run(ctx, a.cfg.ChannelTag, a.cfg.ContextPreamble, text, userID, a.cfg.AgentID)
	if err != nil {
		var denied *channelrunner.AccessDeniedError
		if errors.As(err, &denied) {
			a.logger.Info("message denied", "user_id", userID, "reason", denied.Message)
			if denied.Message != "" {
				a.send(ctx, channelID, rootID, denied.Message)
			}
			return
		}
		a.logger.Error("run failed", "user_id", userID, "error", err)
		return
	}
	if reply == "" {
		return
	}
	a.send(ctx, channelID, rootID, reply)
}

func (a *Adapter) send(ctx context.Context, channelID, rootID, text string) {
	if a.client == nil {
		return
	}
	post := &model.Post{ChannelId: channelID, Message: text, RootId: rootID}
	if _, _, err := a.client.CreatePost(ctx, post); err != nil {
		a.logger.Error("send failed", "channel_id", channelID, "error", err)
	}
}

func buildWebSocketURL(serverURL string) string {
	wsURL := strings.Replace(serverURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return wsURL
}
