package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agentrt/internal/config"
	"github.com/nexuscore/agentrt/internal/controlplane"
)

// buildApprovalsCmd creates the "approvals" command group for resolving
// destructive-tool calls parked in the approval queue (spec §4.C).
func buildApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Resolve pending destructive-tool approvals",
	}
	cmd.AddCommand(buildApprovalsResolveCmd())
	return cmd
}

func buildApprovalsResolveCmd() *cobra.Command {
	var (
		configPath string
		remoteAddr string
		approve    bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <tool_call_id>",
		Short: "Approve or deny a pending tool call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprovalsResolve(cmd.Context(), configPath, remoteAddr, args[0], approve)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&remoteAddr, "remote", "", "Control-plane gRPC address (default: server.grpc_addr from config)")
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve the call (omit or set false to deny)")
	return cmd
}

func runApprovalsResolve(ctx context.Context, configPath, remoteAddr, toolCallID string, approve bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	addr := remoteAddr
	if addr == "" {
		addr = cfg.Server.GRPCAddr
	}

	client, closeFn, err := dialControlPlane(addr, cfg.Auth.OAuth)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := client.ResolveApproval(ctx, &controlplane.ApprovalDecisionRequest{
		ToolCallID: toolCallID,
		Approve:    approve,
	})
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	fmt.Printf("resolved: %v\n", resp.Resolved)
	return nil
}
