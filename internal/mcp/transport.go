package mcp

import (
	"context"
	"encoding/json"
)

// Transport is the handle abstraction shared by the stdio, SSE, and
// streamable-HTTP transports (spec §4.E).
type Transport interface {
	Connect(ctx context.Context) error
	Close() error

	// SendRequest sends a request and waits for its response or timeout.
	SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error)

	// SendNotification sends a one-way message, no response expected.
	SendNotification(ctx context.Context, method string, params any) error

	// Events delivers server-initiated notifications (e.g. list-changed).
	Events() <-chan *JSONRPCNotification

	IsAlive() bool
}

// NewTransport builds the transport named by cfg.Transport.
func NewTransport(cfg *ServerConfig) Transport {
	switch cfg.Transport {
	case TransportSSE:
		return NewSSETransport(cfg)
	case TransportStreamableHTTP:
		return NewStreamableHTTPTransport(cfg)
	default:
		return NewStdioTransport(cfg)
	}
}
