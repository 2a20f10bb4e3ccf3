package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// StreamableHTTPTransport keeps one duplex websocket connection open for
// both request/response and server-pushed notifications, the "streamable
// HTTP" transport named in spec §4.E (a websocket channel; config.Headers
// are sent on the dial, as with SSE, and config.Env is not used).
type StreamableHTTPTransport struct {
	config *ServerConfig
	logger *slog.Logger
	dialer *websocket.Dialer

	conn   *websocket.Conn
	connMu sync.Mutex

	pending   map[int64]chan *JSONRPCResponse
	pendingMu sync.Mutex
	events    chan *JSONRPCNotification
	nextID    atomic.Int64

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func NewStreamableHTTPTransport(cfg *ServerConfig) *StreamableHTTPTransport {
	return &StreamableHTTPTransport{
		config:   cfg,
		logger:   slog.Default().With("mcp_server", cfg.ID, "transport", "streamable_http"),
		dialer:   websocket.DefaultDialer,
		pending:  make(map[int64]chan *JSONRPCResponse),
		events:   make(chan *JSONRPCNotification, 100),
		stopChan: make(chan struct{}),
	}
}

func (t *StreamableHTTPTransport) wsURL() string {
	url := t.config.URL
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return url
}

func (t *StreamableHTTPTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("URL is required for streamable HTTP transport")
	}

	header := http.Header{}
	for k, v := range t.config.Headers {
		header.Set(k, v)
	}

	conn, _, err := t.dialer.DialContext(ctx, t.wsURL(), header)
	if err != nil {
		return fmt.Errorf("dial streamable http: %w", err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	t.connected.Store(true)
	t.logger.Info("streamable HTTP transport connected", "url", t.config.URL)

	t.wg.Add(1)
	go t.readLoop()

	return nil
}

func (t *StreamableHTTPTransport) Close() error {
	t.connected.Store(false)
	close(t.stopChan)

	t.connMu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.connMu.Unlock()

	t.wg.Wait()
	return nil
}

func (t *StreamableHTTPTransport) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	id := t.nextID.Add(1)
	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan *JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	t.connMu.Lock()
	err := t.conn.WriteJSON(req)
	t.connMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	timeout := t.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, &rpcError{resp.Error}
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("request timeout after %v", timeout)
	case <-t.stopChan:
		return nil, fmt.Errorf("transport closed")
	}
}

func (t *StreamableHTTPTransport) SendNotification(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}

	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}

	t.connMu.Lock()
	err := t.conn.WriteJSON(notif)
	t.connMu.Unlock()
	if err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

func (t *StreamableHTTPTransport) Events() <-chan *JSONRPCNotification { return t.events }
func (t *StreamableHTTPTransport) IsAlive() bool                       { return t.connected.Load() }

func (t *StreamableHTTPTransport) readLoop() {
	defer t.wg.Done()
	defer t.connected.Store(false)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.logger.Debug("streamable http read error", "error", err)
			return
		}
		t.processMessage(data)
	}
}

func (t *StreamableHTTPTransport) processMessage(data []byte) {
	var resp JSONRPCResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.ID != nil {
		var id int64
		switch v := resp.ID.(type) {
		case float64:
			id = int64(v)
		case int64:
			id = v
		case int:
			id = int64(v)
		default:
			return
		}

		t.pendingMu.Lock()
		if ch, ok := t.pending[id]; ok {
			select {
			case ch <- &resp:
			default:
			}
			delete(t.pending, id)
		}
		t.pendingMu.Unlock()
		return
	}

	var notif JSONRPCNotification
	if err := json.Unmarshal(data, &notif); err == nil && notif.Method != "" {
		select {
		case t.events <- &notif:
		default:
			t.logger.Warn("notification channel full, dropping")
		}
	}
}
