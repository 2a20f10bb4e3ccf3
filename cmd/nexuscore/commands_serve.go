package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the full runtime:
// storage, providers, the agent loop, every configured channel adapter,
// the cron scheduler, and the control-plane gRPC server. The event
// dispatcher is constructed but not started or exposed.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the nexuscore agent runtime",
		Long: `Start nexuscore with all configured channel adapters and LLM providers.

Loads configuration, opens the sqlite store, starts the cron scheduler,
connects every enabled channel adapter, and serves the gRPC control plane
until SIGINT/SIGTERM.`,
		Example: `  nexuscore serve --config nexuscore.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "Path to YAML configuration file")
	return cmd
}

// buildMigrateCmd creates the "migrate" command: open the sqlite store,
// which applies every pending migration on Open, then exit.
func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "Path to YAML configuration file")
	return cmd
}
