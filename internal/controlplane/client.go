package controlplane

import (
	"context"

	"google.golang.org/grpc"
)

// ControlPlaneClient is the client-side stub, hand-written for the same
// reason ControlPlaneServer is (service.go).
type ControlPlaneClient interface {
	ResolveApproval(ctx context.Context, req *ApprovalDecisionRequest, opts ...grpc.CallOption) (*ApprovalDecisionResponse, error)
	StreamStatus(ctx context.Context, req *StatusStreamRequest, opts ...grpc.CallOption) (ControlPlane_StreamStatusClient, error)
}

// ControlPlane_StreamStatusClient is the client-side stream handle.
type ControlPlane_StreamStatusClient interface {
	Recv() (*GatewayStatus, error)
	grpc.ClientStream
}

type controlPlaneClient struct {
	cc grpc.ClientConnInterface
}

// NewControlPlaneClient builds a client bound to cc. Every call is forced
// onto the json codec (codec.go) rather than grpc's default protobuf one.
func NewControlPlaneClient(cc grpc.ClientConnInterface) ControlPlaneClient {
	return &controlPlaneClient{cc: cc}
}

func (c *controlPlaneClient) ResolveApproval(ctx context.Context, req *ApprovalDecisionRequest, opts ...grpc.CallOption) (*ApprovalDecisionResponse, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	out := new(ApprovalDecisionResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ResolveApproval", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlPlaneClient) StreamStatus(ctx context.Context, req *StatusStreamRequest, opts ...grpc.CallOption) (ControlPlane_StreamStatusClient, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+serviceName+"/StreamStatus", opts...)
	if err != nil {
		return nil, err
	}
	x := &controlPlaneStreamStatusClient{stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type controlPlaneStreamStatusClient struct {
	grpc.ClientStream
}

func (x *controlPlaneStreamStatusClient) Recv() (*GatewayStatus, error) {
	m := new(GatewayStatus)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
