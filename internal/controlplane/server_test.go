package controlplane

import (
	"context"
	"io"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nexuscore/agentrt/internal/policy"
)

type fakeStatusProvider struct{ active int64 }

func (f fakeStatusProvider) ActiveSessions() int64 { return f.active }

type fakeStreamStatusServer struct {
	ctx  context.Context
	sent []*GatewayStatus
}

func (f *fakeStreamStatusServer) Send(m *GatewayStatus) error {
	f.sent = append(f.sent, m)
	if len(f.sent) >= 2 {
		return io.EOF
	}
	return nil
}
func (f *fakeStreamStatusServer) SetHeader(_ metadata.MD) error  { return nil }
func (f *fakeStreamStatusServer) SendHeader(_ metadata.MD) error { return nil }
func (f *fakeStreamStatusServer) SetTrailer(_ metadata.MD)       {}
func (f *fakeStreamStatusServer) Context() context.Context       { return f.ctx }
func (f *fakeStreamStatusServer) SendMsg(m any) error            { return nil }
func (f *fakeStreamStatusServer) RecvMsg(m any) error            { return nil }

func TestResolveApprovalRequiresToolCallID(t *testing.T) {
	srv := NewServer(policy.NewQueue(10), nil, nil)
	_, err := srv.ResolveApproval(context.Background(), &ApprovalDecisionRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestResolveApprovalAppliesDecisionToQueue(t *testing.T) {
	q := policy.NewQueue(10)
	ch, err := q.Enqueue(&policy.PendingApproval{ToolCallID: "call-1", ToolName: "exec"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	srv := NewServer(q, nil, nil)

	resp, err := srv.ResolveApproval(context.Background(), &ApprovalDecisionRequest{ToolCallID: "call-1", Approve: true})
	if err != nil {
		t.Fatalf("ResolveApproval() error = %v", err)
	}
	if !resp.Resolved {
		t.Fatal("expected Resolved = true")
	}
	select {
	case decision := <-ch:
		if decision != policy.DecisionApprove {
			t.Fatalf("expected DecisionApprove, got %v", decision)
		}
	default:
		t.Fatal("expected the waiter channel to receive a decision")
	}
	if q.Len() != 0 {
		t.Fatalf("expected the queue to be empty after resolution, got %d", q.Len())
	}
}

func TestResolveApprovalUnknownToolCallIsNotFound(t *testing.T) {
	srv := NewServer(policy.NewQueue(10), nil, nil)
	_, err := srv.ResolveApproval(context.Background(), &ApprovalDecisionRequest{ToolCallID: "missing", Approve: true})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStreamStatusReportsQueueDepthAndActiveSessions(t *testing.T) {
	q := policy.NewQueue(10)
	if _, err := q.Enqueue(&policy.PendingApproval{ToolCallID: "call-1", ToolName: "exec"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	srv := NewServer(q, fakeStatusProvider{active: 3}, nil)
	srv.pollInterval = time.Millisecond

	stream := &fakeStreamStatusServer{ctx: context.Background()}
	err := srv.StreamStatus(&StatusStreamRequest{}, stream)
	if err != io.EOF {
		t.Fatalf("expected io.EOF once the fake stream stops accepting sends, got %v", err)
	}
	if len(stream.sent) == 0 {
		t.Fatal("expected at least one status snapshot")
	}
	first := stream.sent[0]
	if first.PendingApprovals != 1 || first.ActiveSessions != 3 {
		t.Fatalf("unexpected snapshot: %+v", first)
	}
}
