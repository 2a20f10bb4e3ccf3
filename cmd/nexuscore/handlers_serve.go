package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/nexuscore/agentrt/channels/discordadapter"
	"github.com/nexuscore/agentrt/channels/mattermostadapter"
	"github.com/nexuscore/agentrt/channels/nostradapter"
	"github.com/nexuscore/agentrt/channels/slackadapter"
	"github.com/nexuscore/agentrt/channels/telegramadapter"
	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/agent/builtins"
	"github.com/nexuscore/agentrt/internal/agent/providers"
	"github.com/nexuscore/agentrt/internal/auth"
	"github.com/nexuscore/agentrt/internal/channelrunner"
	"github.com/nexuscore/agentrt/internal/config"
	"github.com/nexuscore/agentrt/internal/controlplane"
	"github.com/nexuscore/agentrt/internal/engram"
	"github.com/nexuscore/agentrt/internal/events"
	"github.com/nexuscore/agentrt/internal/mcp"
	"github.com/nexuscore/agentrt/internal/observability"
	"github.com/nexuscore/agentrt/internal/orchestrator"
	"github.com/nexuscore/agentrt/internal/policy"
	"github.com/nexuscore/agentrt/internal/storage/sqlitestore"
	"github.com/nexuscore/agentrt/internal/tasks"
	"github.com/nexuscore/agentrt/internal/tokenizer"
	"github.com/nexuscore/agentrt/internal/usage"
)

// runtime bundles every long-lived component runServe wires together, so
// shutdown can unwind it in one place.
type runtime struct {
	store        *sqlitestore.Store
	mcpRegistry  *mcp.Registry
	scheduler    *tasks.Scheduler
	adapters     *channelrunner.AdapterRegistry
	grpcServer   *grpc.Server
	tracerClose  func(context.Context) error
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting nexuscore",
		"version", version,
		"commit", commit,
		"config", configPath,
	)

	rt, err := bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap runtime: %w", err)
	}

	if err := rt.mcpRegistry.Start(ctx); err != nil {
		slog.Warn("mcp registry start reported errors", "error", err)
	}
	rt.scheduler.Start(ctx)

	if err := rt.adapters.StartAll(ctx); err != nil {
		return fmt.Errorf("start channel adapters: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPCAddr, err)
	}
	go func() {
		if err := rt.grpcServer.Serve(listener); err != nil {
			slog.Error("control-plane server stopped", "error", err)
		}
	}()
	slog.Info("control plane listening", "addr", cfg.Server.GRPCAddr)

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-sigCtx.Done()

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	rt.grpcServer.GracefulStop()
	_ = rt.adapters.StopAll(shutdownCtx)
	rt.scheduler.Stop()
	_ = rt.mcpRegistry.Stop()
	if rt.tracerClose != nil {
		_ = rt.tracerClose(shutdownCtx)
	}
	return rt.store.Close()
}

func runMigrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := sqlitestore.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	slog.Info("migrations applied", "database", cfg.Database.Path)
	return store.Close()
}

// sessionCounter is a placeholder controlplane.StatusProvider: this
// deployment does not yet meter concurrent in-flight agent loop runs, so
// ActiveSessions always reports zero rather than a fabricated count.
type sessionCounter struct{}

func (sessionCounter) ActiveSessions() int64 { return 0 }

// bootstrap constructs every subsystem serve needs and returns the ones
// serve drives as a runtime, without starting any background work (callers start the
// scheduler, mcp registry, adapters, and gRPC listener themselves).
func bootstrap(ctx context.Context, cfg *config.Config) (*runtime, error) {
	store, err := sqlitestore.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	authCfg := auth.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenExpiry: cfg.Auth.TokenExpiry,
		APIKeys:     cfg.Auth.APIKeys,
	}
	authService := auth.NewService(authCfg) // enforced by the gRPC interceptors installed below

	provider, err := selectProvider(cfg)
	if err != nil {
		return nil, err
	}

	tok := tokenizer.New(tokenizer.KindCL100K)
	usageTracker := usage.NewTracker()

	queue := policy.NewQueue(cfg.Policy.ApprovalQueueCapacity)
	tradingPolicy := cfg.Policy.Trading.TradingPolicy()
	spendTracker := policy.NewDailySpendTracker()
	gate := policy.NewGate(queue, tradingPolicy, spendTracker)

	mcpRegistry := mcp.NewRegistry(&cfg.MCP, slog.Default().With("component", "mcp"))

	orchestratorStore := orchestrator.NewMemoryStore()
	directory := orchestrator.NewDirectory(orchestratorStore)
	bus := orchestrator.NewBus(orchestratorStore)

	taskStore := tasks.NewMemoryStore()
	taskAdapter := tasks.NewBuiltinAdapter(taskStore)

	workspace := cfg.Tools.Workspace
	if workspace == "" {
		workspace = "."
	}
	builtinTools := []agent.Tool{
		builtins.NewExecTool(workspace),
		builtins.NewFetchTool(cfg.Tools.FetchAllowedHosts),
		builtins.NewFetchUnallowlistedTool(),
		builtins.NewFilesystemReadTool(workspace),
		builtins.NewFilesystemWriteTool(workspace),
		builtins.NewFilesystemWriteOutsideWorkspaceTool(workspace),
		builtins.NewFilesystemListTool(workspace),
		builtins.NewSoulTool(store),
		builtins.NewAgentsTool(directory),
		builtins.NewAgentMessageTool(bus),
		builtins.NewMessageBroadcastTool(bus),
		builtins.NewTasksTool(taskAdapter),
	}

	if cfg.Engram.Embeddings.Enabled() {
		embedder, err := engram.NewRemoteEmbedder(cfg.Engram.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("build embedder: %w", err)
		}
		memoryManager := engram.NewManager(store, embedder, engram.NewWorkingMemory(store), tok, cfg.Engram.Config)
		builtinTools = append(builtinTools, builtins.NewMemoryTool(memoryManager))
	}

	builtinsByName := make(map[string]agent.Tool, len(builtinTools))
	for _, t := range builtinTools {
		builtinsByName[t.Name()] = t
	}

	dispatcher := agent.NewDispatcher(builtinsByName, map[string]agent.Tool{}, mcpRegistry, gate)
	registry := agent.NewToolRegistry()

	loopCfg := agent.DefaultLoopConfig()
	loop := &agent.Loop{
		Provider:   provider,
		Sessions:   store,
		Registry:   registry,
		Dispatcher: dispatcher,
		Usage:      usageTracker,
		Config:     loopCfg,
	}

	// Boss-role control tools delegate into the same Loop/Dispatcher so
	// cost accounting stays unified across boss and worker rounds.
	delegator := &orchestrator.Delegator{
		Loop:           loop,
		Sessions:       store,
		Store:          orchestratorStore,
		DefaultPrompt:  "You are a helpful agent.",
		DefaultModel:   cfg.LLM.Anthropic.DefaultModel,
		WorkerBuiltins: builtinTools,
	}
	bossTools := map[string]agent.Tool{
		"delegate_task":      orchestrator.NewDelegateTaskTool(delegator),
		"check_agent_status": orchestrator.NewCheckAgentStatusTool(orchestratorStore),
		"send_agent_message": orchestrator.NewSendAgentMessageTool(bus),
		"project_complete":   orchestrator.NewProjectCompleteTool(orchestratorStore),
		"create_sub_agent":   orchestrator.NewCreateSubAgentTool(orchestratorStore, store),
		"report_progress":    orchestrator.NewReportProgressTool(orchestratorStore),
	}
	for name, tool := range bossTools {
		dispatcher.Builtins[name] = tool
	}

	accessStore := channelrunner.NewMemoryStore()
	applyChannelAccessConfig(ctx, accessStore, cfg)
	access := channelrunner.NewAccessController(accessStore)
	runner := channelrunner.NewRunner(store, loop, access, "You are a helpful agent.", cfg.LLM.Anthropic.DefaultModel, builtinTools)

	adapters := channelrunner.NewAdapterRegistry()
	if err := registerChannelAdapters(adapters, cfg, runner); err != nil {
		return nil, err
	}

	loopExecutor := tasks.NewLoopExecutor(loop, "You are a helpful agent.", cfg.LLM.Anthropic.DefaultModel, builtinTools)
	scheduler := tasks.NewScheduler(taskStore, loopExecutor, cfg.Tasks.SchedulerConfig())
	eventDispatcher := events.NewDispatcher(taskStore, loopExecutor, tasks.NextRun)
	_ = eventDispatcher // wired for webhook-triggered dispatch at the HTTP ingress, not yet exposed over gRPC

	metrics := observability.NewMetrics()
	_ = metrics // scraped by cfg.Server.MetricsAddr once an HTTP metrics endpoint is added; tracked for future wiring
	tracer, tracerClose := observability.NewTracer(observability.TraceConfig{})
	_ = tracer

	controlServer := controlplane.NewServer(queue, sessionCounter{}, slog.Default().With("component", "controlplane"))
	authLogger := slog.Default().With("component", "auth")
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(auth.UnaryInterceptor(authService, authLogger)),
		grpc.StreamInterceptor(auth.StreamInterceptor(authService, authLogger)),
	)
	controlplane.RegisterControlPlaneServer(grpcServer, controlServer)

	return &runtime{
		store:       store,
		mcpRegistry: mcpRegistry,
		scheduler:   scheduler,
		adapters:    adapters,
		grpcServer:  grpcServer,
		tracerClose: tracerClose,
	}, nil
}

func selectProvider(cfg *config.Config) (agent.LLMProvider, error) {
	if cfg.LLM.Anthropic.APIKey != "" {
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.Anthropic.APIKey,
			BaseURL:      cfg.LLM.Anthropic.BaseURL,
			DefaultModel: cfg.LLM.Anthropic.DefaultModel,
			MaxTokens:    cfg.LLM.Anthropic.MaxTokens,
			Retry:        providers.DefaultRetryConfig(),
		})
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.LLM.OpenAI.APIKey,
			BaseURL:      cfg.LLM.OpenAI.BaseURL,
			DefaultModel: cfg.LLM.OpenAI.DefaultModel,
			MaxTokens:    cfg.LLM.OpenAI.MaxTokens,
			Retry:        providers.DefaultRetryConfig(),
		})
	}
	if cfg.LLM.Bedrock.Region != "" {
		return providers.NewBedrockProvider(context.Background(), providers.BedrockConfig{
			Region:          cfg.LLM.Bedrock.Region,
			AccessKeyID:     cfg.LLM.Bedrock.AccessKeyID,
			SecretAccessKey: cfg.LLM.Bedrock.SecretAccessKey,
			SessionToken:    cfg.LLM.Bedrock.SessionToken,
			DefaultModel:    cfg.LLM.Bedrock.DefaultModel,
			Retry:           providers.DefaultRetryConfig(),
		})
	}
	return nil, fmt.Errorf("no LLM provider configured: set llm.anthropic.api_key, llm.openai.api_key, or llm.bedrock.region")
}

func applyChannelAccessConfig(ctx context.Context, store channelrunner.AccessStore, cfg *config.Config) {
	type channelPolicy struct {
		tag          string
		policy       string
		allowedUsers []string
		preamble     string
	}
	entries := []channelPolicy{
		{"discord", cfg.Channels.Discord.Policy, cfg.Channels.Discord.AllowedUsers, cfg.Channels.Discord.ContextPreamble},
		{"telegram", cfg.Channels.Telegram.Policy, cfg.Channels.Telegram.AllowedUsers, cfg.Channels.Telegram.ContextPreamble},
		{"slack", cfg.Channels.Slack.Policy, cfg.Channels.Slack.AllowedUsers, cfg.Channels.Slack.ContextPreamble},
		{"mattermost", cfg.Channels.Mattermost.Policy, cfg.Channels.Mattermost.AllowedUsers, cfg.Channels.Mattermost.ContextPreamble},
		{"nostr", cfg.Channels.Nostr.Policy, cfg.Channels.Nostr.AllowedUsers, cfg.Channels.Nostr.ContextPreamble},
	}
	for _, e := range entries {
		_ = store.SetConfig(ctx, &channelrunner.ChannelConfig{
			Tag:          e.tag,
			Policy:       config.DMPolicy(e.policy),
			Preamble:     e.preamble,
			AllowedUsers: e.allowedUsers,
		})
	}
}

func registerChannelAdapters(adapters *channelrunner.AdapterRegistry, cfg *config.Config, runner *channelrunner.Runner) error {
	logger := slog.Default()

	if cfg.Channels.Discord.Token != "" {
		a, err := discordadapter.New(discordadapter.Config{
			Token:           cfg.Channels.Discord.Token,
			AgentID:         cfg.Channels.Discord.AgentID,
			ChannelTag:      "discord",
			ContextPreamble: cfg.Channels.Discord.ContextPreamble,
			Logger:          logger,
		}, runner)
		if err != nil {
			return fmt.Errorf("discord adapter: %w", err)
		}
		adapters.Register(a)
	}

	if cfg.Channels.Telegram.Token != "" {
		a, err := telegramadapter.New(telegramadapter.Config{
			Token:           cfg.Channels.Telegram.Token,
			AgentID:         cfg.Channels.Telegram.AgentID,
			ChannelTag:      "telegram",
			ContextPreamble: cfg.Channels.Telegram.ContextPreamble,
			Logger:          logger,
		}, runner)
		if err != nil {
			return fmt.Errorf("telegram adapter: %w", err)
		}
		adapters.Register(a)
	}

	if cfg.Channels.Slack.BotToken != "" {
		a, err := slackadapter.New(slackadapter.Config{
			BotToken:        cfg.Channels.Slack.BotToken,
			AppToken:        cfg.Channels.Slack.AppToken,
			AgentID:         cfg.Channels.Slack.AgentID,
			ChannelTag:      "slack",
			ContextPreamble: cfg.Channels.Slack.ContextPreamble,
			Logger:          logger,
		}, runner)
		if err != nil {
			return fmt.Errorf("slack adapter: %w", err)
		}
		adapters.Register(a)
	}

	if cfg.Channels.Mattermost.ServerURL != "" {
		a, err := mattermostadapter.New(mattermostadapter.Config{
			ServerURL:       cfg.Channels.Mattermost.ServerURL,
			Token:           cfg.Channels.Mattermost.Token,
			Username:        cfg.Channels.Mattermost.Username,
			Password:        cfg.Channels.Mattermost.Password,
			AgentID:         cfg.Channels.Mattermost.AgentID,
			ChannelTag:      "mattermost",
			ContextPreamble: cfg.Channels.Mattermost.ContextPreamble,
			Logger:          logger,
		}, runner)
		if err != nil {
			return fmt.Errorf("mattermost adapter: %w", err)
		}
		adapters.Register(a)
	}

	if cfg.Channels.Nostr.PrivateKey != "" {
		a, err := nostradapter.New(nostradapter.Config{
			PrivateKey:      cfg.Channels.Nostr.PrivateKey,
			Relays:          cfg.Channels.Nostr.Relays,
			AgentID:         cfg.Channels.Nostr.AgentID,
			ChannelTag:      "nostr",
			ContextPreamble: cfg.Channels.Nostr.ContextPreamble,
			Logger:          logger,
		}, runner)
		if err != nil {
			return fmt.Errorf("nostr adapter: %w", err)
		}
		adapters.Register(a)
	}

	return nil
}
