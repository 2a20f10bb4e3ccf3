package controlplane

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nexuscore/agentrt/internal/policy"
)

// dialLocal starts srv on an in-memory listener and returns a client bound
// to it, exercising the real grpc.Server/grpc.ClientConn path (ServiceDesc
// registration, the json codec negotiated via content-subtype) end to end.
func dialLocal(t *testing.T, impl ControlPlaneServer) (ControlPlaneClient, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)

	grpcServer := grpc.NewServer()
	RegisterControlPlaneServer(grpcServer, impl)
	go func() { _ = grpcServer.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient() error = %v", err)
	}

	cleanup := func() {
		_ = conn.Close()
		grpcServer.Stop()
	}
	return NewControlPlaneClient(conn), cleanup
}

func TestResolveApprovalOverRealGRPCConnection(t *testing.T) {
	q := policy.NewQueue(10)
	if _, err := q.Enqueue(&policy.PendingApproval{ToolCallID: "call-1", ToolName: "exec"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	srv := NewServer(q, nil, nil)

	client, cleanup := dialLocal(t, srv)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.ResolveApproval(ctx, &ApprovalDecisionRequest{ToolCallID: "call-1", Approve: true})
	if err != nil {
		t.Fatalf("ResolveApproval() error = %v", err)
	}
	if !resp.Resolved {
		t.Fatal("expected Resolved = true")
	}
}

func TestStreamStatusOverRealGRPCConnection(t *testing.T) {
	q := policy.NewQueue(10)
	srv := NewServer(q, fakeStatusProvider{active: 2}, nil)
	srv.pollInterval = 10 * time.Millisecond

	client, cleanup := dialLocal(t, srv)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.StreamStatus(ctx, &StatusStreamRequest{IntervalMS: 10})
	if err != nil {
		t.Fatalf("StreamStatus() error = %v", err)
	}

	update, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if update.ActiveSessions != 2 {
		t.Fatalf("expected active_sessions=2, got %d", update.ActiveSessions)
	}
}
