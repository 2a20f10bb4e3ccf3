package controlplane

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nexuscore/agentrt/internal/policy"
)

// StatusProvider supplies the live counters StreamStatus reports alongside
// the approval queue's own pending count.
type StatusProvider interface {
	ActiveSessions() int64
}

// Server implements ControlPlaneServer over internal/policy's approval
// queue (spec §4.C) and a caller-supplied StatusProvider (spec §4.K).
type Server struct {
	Queue     *policy.Queue
	Status    StatusProvider
	StartTime time.Time
	Logger    *slog.Logger

	pollInterval time.Duration // overridable by tests; defaults to 5s
}

var _ ControlPlaneServer = (*Server)(nil)

// NewServer constructs a control-plane service bound to queue.
func NewServer(queue *policy.Queue, statusProvider StatusProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Queue:        queue,
		Status:       statusProvider,
		StartTime:    time.Now(),
		Logger:       logger,
		pollInterval: 5 * time.Second,
	}
}

// ResolveApproval applies an operator's approve/deny decision to a pending
// tool call, waking the dispatcher's retry for that tool_call_id.
func (s *Server) ResolveApproval(ctx context.Context, req *ApprovalDecisionRequest) (*ApprovalDecisionResponse, error) {
	if req == nil || req.ToolCallID == "" {
		return nil, status.Error(codes.InvalidArgument, "tool_call_id is required")
	}

	decision := policy.DecisionDeny
	if req.Approve {
		decision = policy.DecisionApprove
	}
	if err := s.Queue.Resolve(req.ToolCallID, decision); err != nil {
		return nil, status.Errorf(codes.NotFound, "%v", err)
	}

	s.Logger.Info("approval resolved", "tool_call_id", req.ToolCallID, "approved", req.Approve)
	return &ApprovalDecisionResponse{Resolved: true}, nil
}

// StreamStatus pushes a GatewayStatus snapshot on req's interval until the
// stream's context is cancelled.
func (s *Server) StreamStatus(req *StatusStreamRequest, stream ControlPlane_StreamStatusServer) error {
	interval := s.pollInterval
	if req != nil && req.IntervalMS > 0 {
		interval = time.Duration(req.IntervalMS) * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := stream.Context()
	for {
		if err := stream.Send(s.snapshot()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) snapshot() *GatewayStatus {
	var activeSessions int64
	if s.Status != nil {
		activeSessions = s.Status.ActiveSessions()
	}
	return &GatewayStatus{
		UptimeSeconds:    int64(time.Since(s.StartTime).Seconds()),
		ActiveSessions:   activeSessions,
		PendingApprovals: int64(s.Queue.Len()),
	}
}
