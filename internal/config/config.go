// Package config decodes the single YAML configuration file that
// parameterizes every subsystem cmd/nexuscore wires together, mirroring
// the teacher's internal/config.Config aggregate (one struct, one file,
// every subsystem's own Config type embedded by value) rather than each
// package reading its own environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexuscore/agentrt/internal/auth"
	"github.com/nexuscore/agentrt/internal/channelrunner"
	"github.com/nexuscore/agentrt/internal/engram"
	"github.com/nexuscore/agentrt/internal/mcp"
	"github.com/nexuscore/agentrt/internal/policy"
	"github.com/nexuscore/agentrt/internal/tasks"
)

// Config is the root configuration structure, decoded from a single YAML
// document (env vars are expanded before parsing, the way the teacher's
// internal/config.LoadRaw does with os.ExpandEnv).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	LLM       LLMConfig       `yaml:"llm"`
	MCP       mcp.Config      `yaml:"mcp"`
	Engram    EngramConfig    `yaml:"engram"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Policy    PolicyConfig    `yaml:"policy"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ToolsConfig configures the builtin tools that need operator-supplied
// bounds (internal/agent/builtins).
type ToolsConfig struct {
	Workspace        string   `yaml:"workspace"`
	FetchAllowedHosts []string `yaml:"fetch_allowed_hosts"`
}

// ServerConfig configures the control-plane gRPC listener (spec §4.K).
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// DatabaseConfig points at the sqlite database file backing sessions, soul
// files, working memory, and long-term memory (internal/storage/sqlitestore).
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures the control-plane's JWT/API-key/OAuth principal
// resolution (internal/auth).
type AuthConfig struct {
	JWTSecret   string              `yaml:"jwt_secret"`
	TokenExpiry time.Duration       `yaml:"token_expiry"`
	APIKeys     []auth.APIKeyConfig `yaml:"api_keys"`
	OAuth       auth.OAuthConfig    `yaml:"oauth"`
}

// LLMConfig holds each provider's credentials; empty fields leave that
// provider unregistered rather than erroring (spec §4.A "multi-provider,
// configured subset").
type LLMConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
}

type AnthropicConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	MaxTokens    int    `yaml:"max_tokens"`
}

type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	MaxTokens    int    `yaml:"max_tokens"`
}

type BedrockConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	DefaultModel    string `yaml:"default_model"`
}

// EngramConfig wraps internal/engram.Config (recall tuning) alongside the
// embeddings backend config a Manager needs an EmbeddingClient for vector
// recall; Embeddings.Enabled()==false keeps long-term memory on BM25-only
// recall.
type EngramConfig struct {
	engram.Config `yaml:",inline"`
	Embeddings    engram.EmbeddingsConfig `yaml:"embeddings"`
}

// TasksConfig configures the cron scheduler poll loop (internal/tasks).
type TasksConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

func (c TasksConfig) SchedulerConfig() tasks.SchedulerConfig {
	cfg := tasks.DefaultSchedulerConfig()
	if c.PollInterval > 0 {
		cfg.PollInterval = c.PollInterval
	}
	return cfg
}

// PolicyConfig configures the destructive-tool approval gate
// (internal/policy): the bounded pending-approval queue, and the trading
// family's auto-approval limits.
type PolicyConfig struct {
	ApprovalQueueCapacity int            `yaml:"approval_queue_capacity"`
	Trading               TradingConfig  `yaml:"trading"`
}

type TradingConfig struct {
	AutoApproveUnderUSD float64 `yaml:"auto_approve_under_usd"`
	DailySpendCapUSD    float64 `yaml:"daily_spend_cap_usd"`
	AllowWalletCreate   bool    `yaml:"allow_wallet_create"`
}

func (t TradingConfig) TradingPolicy() *policy.TradingPolicy {
	return &policy.TradingPolicy{
		AutoApproveUnderUSD: t.AutoApproveUnderUSD,
		DailySpendCapUSD:    t.DailySpendCapUSD,
		AllowWalletCreate:   t.AllowWalletCreate,
	}
}

// ChannelsConfig holds the per-bridge configuration for every channel
// adapter cmd/nexuscore can start (spec §4.K). A channel whose gating field
// (Token, BotToken, PrivateKey, or ServerURL for Mattermost) is empty is
// left unregistered.
type ChannelsConfig struct {
	Discord     DiscordChannelConfig     `yaml:"discord"`
	Telegram    TelegramChannelConfig    `yaml:"telegram"`
	Slack       SlackChannelConfig       `yaml:"slack"`
	Mattermost  MattermostChannelConfig  `yaml:"mattermost"`
	Nostr       NostrChannelConfig       `yaml:"nostr"`
}

type DiscordChannelConfig struct {
	Token           string   `yaml:"token"`
	AgentID         string   `yaml:"agent_id"`
	Policy          string   `yaml:"policy"`
	AllowedUsers    []string `yaml:"allowed_users"`
	ContextPreamble string   `yaml:"context_preamble"`
}

type TelegramChannelConfig struct {
	Token           string   `yaml:"token"`
	AgentID         string   `yaml:"agent_id"`
	Policy          string   `yaml:"policy"`
	AllowedUsers    []string `yaml:"allowed_users"`
	ContextPreamble string   `yaml:"context_preamble"`
}

type SlackChannelConfig struct {
	BotToken        string   `yaml:"bot_token"`
	AppToken        string   `yaml:"app_token"`
	AgentID         string   `yaml:"agent_id"`
	Policy          string   `yaml:"policy"`
	AllowedUsers    []string `yaml:"allowed_users"`
	ContextPreamble string   `yaml:"context_preamble"`
}

type MattermostChannelConfig struct {
	ServerURL       string   `yaml:"server_url"`
	Token           string   `yaml:"token"`
	Username        string   `yaml:"username"`
	Password        string   `yaml:"password"`
	AgentID         string   `yaml:"agent_id"`
	Policy          string   `yaml:"policy"`
	AllowedUsers    []string `yaml:"allowed_users"`
	ContextPreamble string   `yaml:"context_preamble"`
}

type NostrChannelConfig struct {
	PrivateKey      string   `yaml:"private_key"`
	Relays          []string `yaml:"relays"`
	AgentID         string   `yaml:"agent_id"`
	Policy          string   `yaml:"policy"`
	AllowedUsers    []string `yaml:"allowed_users"`
	ContextPreamble string   `yaml:"context_preamble"`
}

// DMPolicy maps a channel's configured policy string (default "open") onto
// internal/channelrunner's DMPolicy enum.
func DMPolicy(policyName string) channelrunner.DMPolicy {
	switch strings.ToLower(strings.TrimSpace(policyName)) {
	case "allowlist":
		return channelrunner.PolicyAllowlist
	case "pairing":
		return channelrunner.PolicyPairing
	default:
		return channelrunner.PolicyOpen
	}
}

// LoggingConfig configures the slog handler cmd/nexuscore installs as the
// process default.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" (default) or "text"
}

// Load reads path, expands ${VAR}/$VAR environment references the way the
// teacher's loader does, and decodes the result into a Config. Unlike the
// teacher's LoadRaw this does not resolve $include directives or accept
// JSON5 — this deployment ships one flat YAML file, so that machinery has
// nothing to exercise here.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.GRPCAddr) == "" {
		c.Server.GRPCAddr = ":7700"
	}
	if strings.TrimSpace(c.Server.MetricsAddr) == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = "nexuscore.db"
	}
	if c.Auth.TokenExpiry == 0 {
		c.Auth.TokenExpiry = 24 * time.Hour
	}
	if c.Policy.ApprovalQueueCapacity == 0 {
		c.Policy.ApprovalQueueCapacity = 256
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = "json"
	}
}
