package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
)

// fakeTransport is an in-memory Transport for exercising Client without a
// real subprocess or network connection.
type fakeTransport struct {
	connected bool
	responses map[string]json.RawMessage
	errs      map[string]error
	calls     []string
	events    chan *JSONRPCNotification
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: map[string]json.RawMessage{},
		errs:      map[string]error{},
		events:    make(chan *JSONRPCNotification, 1),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Close() error                      { f.connected = false; return nil }
func (f *fakeTransport) IsAlive() bool                      { return f.connected }
func (f *fakeTransport) Events() <-chan *JSONRPCNotification { return f.events }

func (f *fakeTransport) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	if resp, ok := f.responses[method]; ok {
		return resp, nil
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeTransport) SendNotification(ctx context.Context, method string, params any) error {
	f.calls = append(f.calls, "notify:"+method)
	return nil
}

func newTestClient(ft *fakeTransport) *Client {
	return &Client{
		config:    &ServerConfig{ID: "test-server"},
		transport: ft,
		logger:    slog.Default(),
	}
}

func TestClientConnectHandshake(t *testing.T) {
	ft := newFakeTransport()
	ft.responses["initialize"] = json.RawMessage(`{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"acme","version":"1.2.3"}}`)
	ft.responses["tools/list"] = json.RawMessage(`{"tools":[{"name":"search","inputSchema":{}}]}`)

	c := newTestClient(ft)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if c.ServerInfo().Name != "acme" {
		t.Fatalf("ServerInfo().Name = %q, want acme", c.ServerInfo().Name)
	}
	if len(c.Tools()) != 1 || c.Tools()[0].Name != "search" {
		t.Fatalf("Tools() = %+v, want one tool named search", c.Tools())
	}

	wantSequence := []string{"initialize", "notify:notifications/initialized", "tools/list", "resources/list", "prompts/list"}
	if len(ft.calls) != len(wantSequence) {
		t.Fatalf("calls = %v, want %v", ft.calls, wantSequence)
	}
	for i, m := range wantSequence {
		if ft.calls[i] != m {
			t.Fatalf("calls[%d] = %q, want %q", i, ft.calls[i], m)
		}
	}
}

func TestClientRefreshCapabilitiesToleratesMethodNotFound(t *testing.T) {
	ft := newFakeTransport()
	ft.responses["initialize"] = json.RawMessage(`{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"acme","version":"1.0.0"}}`)
	ft.errs["tools/list"] = &rpcError{&JSONRPCError{Code: ErrCodeMethodNotFound, Message: "tools/list not supported"}}

	c := newTestClient(ft)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if len(c.Tools()) != 0 {
		t.Fatalf("Tools() = %+v, want empty when tools/list is unsupported", c.Tools())
	}
}

func TestClientCallToolMarshalsArguments(t *testing.T) {
	ft := newFakeTransport()
	ft.responses["tools/call"] = json.RawMessage(`{"content":[{"type":"text","text":"42"}],"isError":false}`)
	ft.connected = true

	c := newTestClient(ft)
	result, err := c.CallTool(context.Background(), "calculate", json.RawMessage(`{"expr":"6*7"}`))
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if result.ExtractText() != "42" {
		t.Fatalf("ExtractText() = %q, want 42", result.ExtractText())
	}
	if result.IsError {
		t.Fatal("expected IsError = false")
	}
}

func TestClientCallToolPropagatesError(t *testing.T) {
	ft := newFakeTransport()
	ft.errs["tools/call"] = fmt.Errorf("transport exploded")

	c := newTestClient(ft)
	if _, err := c.CallTool(context.Background(), "calculate", nil); err == nil {
		t.Fatal("expected error from CallTool")
	}
}
