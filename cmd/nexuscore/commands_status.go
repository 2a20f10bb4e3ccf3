package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nexuscore/agentrt/internal/auth"
	"github.com/nexuscore/agentrt/internal/config"
	"github.com/nexuscore/agentrt/internal/controlplane"
)

// oauthPerRPCCredentials attaches auth.OAuthConfig's bearer token to every
// outbound call, the grpc.WithPerRPCCredentials style the OAuthConfig doc
// comment promises. RequireTransportSecurity is false because this CLI
// dials its control plane over a trusted operator network without TLS
// (spec §4.K names no transport-security requirement for this surface).
type oauthPerRPCCredentials struct {
	cfg auth.OAuthConfig
}

func (c oauthPerRPCCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token, err := c.cfg.BearerToken(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": token}, nil
}

func (c oauthPerRPCCredentials) RequireTransportSecurity() bool { return false }

// buildStatusCmd creates the "status" command, which dials a running
// nexuscore's control plane and prints one GatewayStatus snapshot.
func buildStatusCmd() *cobra.Command {
	var (
		configPath string
		remoteAddr string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report gateway status",
		Long:  `Connects to a running nexuscore's control plane and prints uptime, active sessions, and pending approvals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), configPath, remoteAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "nexuscore.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&remoteAddr, "remote", "", "Control-plane gRPC address (default: server.grpc_addr from config)")
	return cmd
}

func runStatus(ctx context.Context, configPath, remoteAddr string) error {
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

	stream, err := client.StreamStatus(ctx, &controlplane.StatusStreamRequest{IntervalMS: 1000})
	if err != nil {
		return fmt.Errorf("stream status: %w", err)
	}
	snapshot, err := stream.Recv()
	if err != nil {
		return fmt.Errorf("receive status: %w", err)
	}

	fmt.Printf("uptime_seconds:    %d\n", snapshot.UptimeSeconds)
	fmt.Printf("active_sessions:   %d\n", snapshot.ActiveSessions)
	fmt.Printf("pending_approvals: %d\n", snapshot.PendingApprovals)
	return nil
}

// dialControlPlane connects to a remote control plane over an insecure
// gRPC channel (spec scope: operator-facing CLI on a trusted network), and
// returns the client plus a close func that closes the connection.
func dialControlPlane(addr string, oauthCfg auth.OAuthConfig) (controlplane.ControlPlaneClient, func(), error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if oauthCfg.Enabled() {
		opts = append(opts, grpc.WithPerRPCCredentials(oauthPerRPCCredentials{cfg: oauthCfg}))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial control plane %s: %w", addr, err)
	}

	return controlplane.NewControlPlaneClient(conn), func() { _ = conn.Close() }, nil
}
