package auth

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor enforces JWT/API key auth on internal/controlplane's
// unary RPCs (approval decisions, status lookups).
func UnaryInterceptor(service *Service, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if service == nil || !service.Enabled() {
			return handler(ctx, req)
		}
		authed, err := authenticate(ctx, service, logger)
		if err != nil {
			return nil, err
		}
		return handler(authed, req)
	}
}

// StreamInterceptor enforces JWT/API key auth on internal/controlplane's
// status-stream RPC.
func StreamInterceptor(service *Service, logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if service == nil || !service.Enabled() {
			return handler(srv, stream)
		}
		authed, err := authenticate(stream.Context(), service, logger)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: stream, ctx: authed})
	}
}

func authenticate(ctx context.Context, service *Service, logger *slog.Logger) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	if token := extractBearer(md); token != "" {
		principal, err := service.ValidateJWT(token)
		if err != nil {
			if logger != nil {
				logger.Warn("jwt validation failed", "error", err)
			}
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return WithPrincipal(ctx, principal), nil
	}

	if apiKey := extractAPIKey(md); apiKey != "" {
		principal, err := service.ValidateAPIKey(apiKey)
		if err != nil {
			if logger != nil {
				logger.Warn("api key validation failed", "error", err)
			}
			return nil, status.Error(codes.Unauthenticated, "invalid api key")
		}
		return WithPrincipal(ctx, principal), nil
	}

	return nil, status.Error(codes.Unauthenticated, "missing credentials")
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

func extractBearer(md metadata.MD) string {
	for _, value := range md.Get("authorization") {
		lower := strings.ToLower(value)
		if strings.HasPrefix(lower, "bearer ") {
			return strings.TrimSpace(value[len("bearer "):])
		}
	}
	return ""
}

func extractAPIKey(md metadata.MD) string {
	for _, key := range []string{"x-api-key", "api-key"} {
		for _, value := range md.Get(key) {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
