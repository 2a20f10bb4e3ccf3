// Package main provides the CLI entry point for nexuscore, the
// multi-provider, multi-channel AI agent runtime (spec §1-§4).
//
// nexuscore connects chat channels (Discord, Telegram, Slack, Mattermost,
// Nostr) to LLM providers (Anthropic, OpenAI, Bedrock) through a single
// Agent Loop, with tool dispatch, destructive-tool approvals, scheduled
// tasks, and a gRPC control plane for remote operators.
//
// # Basic Usage
//
// Start the runtime:
//
//	nexuscore serve --config nexuscore.yaml
//
// Apply pending database migrations without starting the server:
//
//	nexuscore migrate --config nexuscore.yaml
//
// Check gateway status, locally or against a remote control plane:
//
//	nexuscore status --remote localhost:7700
//
// Resolve a pending destructive-tool approval:
//
//	nexuscore approvals resolve <tool_call_id> --approve
//
// List configured MCP servers and their connection state:
//
//	nexuscore mcp status
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with every subcommand attached.
// Kept separate from main so tests can exercise command wiring without
// calling os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nexuscore",
		Short: "nexuscore - multi-provider, multi-channel AI agent runtime",
		Long: `nexuscore runs a single Agent Loop against Anthropic, OpenAI, or Bedrock,
dispatches tool calls through a destructive-tool approval gate, schedules
cron and event-triggered tasks, and bridges Discord, Telegram, Slack,
Mattermost, and Nostr to it through the Channel Agent Runner.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildMigrateCmd(),
		buildStatusCmd(),
		buildApprovalsCmd(),
		buildMCPCmd(),
	)

	return rootCmd
}
