package controlplane

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "nexuscore.controlplane.ControlPlane"

// ControlPlaneServer is the service a control-plane implementation
// satisfies. Mirrors the method shape grpc-go's protoc plugin would
// generate for a two-RPC service, hand-written since no .proto source is
// available to generate it from.
type ControlPlaneServer interface {
	ResolveApproval(ctx context.Context, req *ApprovalDecisionRequest) (*ApprovalDecisionResponse, error)
	StreamStatus(req *StatusStreamRequest, stream ControlPlane_StreamStatusServer) error
}

// ControlPlane_StreamStatusServer is the server-side stream handle for
// StreamStatus, narrowed from grpc.ServerStream the way generated code
// narrows it to the one message type the RPC actually sends.
type ControlPlane_StreamStatusServer interface {
	Send(*GatewayStatus) error
	grpc.ServerStream
}

type controlPlaneStreamStatusServer struct {
	grpc.ServerStream
}

func (s *controlPlaneStreamStatusServer) Send(m *GatewayStatus) error {
	return s.ServerStream.SendMsg(m)
}

func _ControlPlane_ResolveApproval_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ApprovalDecisionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).ResolveApproval(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ResolveApproval"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).ResolveApproval(ctx, req.(*ApprovalDecisionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ControlPlane_StreamStatus_Handler(srv any, stream grpc.ServerStream) error {
	m := new(StatusStreamRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ControlPlaneServer).StreamStatus(m, &controlPlaneStreamStatusServer{ServerStream: stream})
}

// ServiceDesc registers ControlPlaneServer on a *grpc.Server, in place of
// the _ControlPlane_serviceDesc a protoc-gen-go-grpc run would emit.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ControlPlaneServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveApproval", Handler: _ControlPlane_ResolveApproval_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamStatus", Handler: _ControlPlane_StreamStatus_Handler, ServerStreams: true},
	},
	Metadata: "internal/controlplane/service.go",
}

// RegisterControlPlaneServer attaches srv to s under ServiceDesc.
func RegisterControlPlaneServer(s grpc.ServiceRegistrar, srv ControlPlaneServer) {
	s.RegisterService(&ServiceDesc, srv)
}
