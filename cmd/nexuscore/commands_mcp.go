package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agentrt/internal/config"
	"github.com/nexuscore/agentrt/internal/mcp"
)

// buildMCPCmd creates the "mcp" command group for inspecting configured MCP
// servers (spec §4.E) without starting the full runtime.
func buildMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect configured MCP servers",
	}
	cmd.AddCommand(buildMCPStatusCmd())
	return cmd
}

func buildMCPStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Connect to every configured MCP server and report status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPStatus(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "Path to YAML configuration file")
	return cmd
}

func runMCPStatus(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := mcp.NewRegistry(&cfg.MCP, slog.Default().With("component", "mcp"))

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := registry.Start(startCtx); err != nil {
		slog.Warn("one or more mcp servers failed to connect", "error", err)
	}
	defer registry.Stop()

	statuses := registry.StatusList()
	if len(statuses) == 0 {
		fmt.Println("no MCP servers configured")
		return nil
	}
	for _, s := range statuses {
		fmt.Printf("%-20s connected=%-5v tools=%-3d resources=%-3d prompts=%d\n",
			s.ID, s.Connected, s.Tools, s.Resources, s.Prompts)
	}
	return nil
}
