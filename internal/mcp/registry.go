package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config holds the registry's configuration: whether MCP is enabled at all,
// and the set of servers it knows how to connect to.
type Config struct {
	Enabled bool            `yaml:"enabled"`
	Servers []*ServerConfig `yaml:"servers"`
}

// Registry is the thread-safe `{server_id -> Client}` map of spec §4.E. It
// satisfies agent.MCPRouter so the dispatcher can route prefixed tool calls
// without importing this package's concrete types.
type Registry struct {
	config  *Config
	logger  *slog.Logger
	clients map[string]*Client
	mu      sync.RWMutex
}

func NewRegistry(cfg *Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		config:  cfg,
		logger:  logger.With("component", "mcp"),
		clients: make(map[string]*Client),
	}
}

// Start connects every server configured with auto_start.
func (r *Registry) Start(ctx context.Context) error {
	if r.config == nil || !r.config.Enabled {
		r.logger.Debug("MCP disabled")
		return nil
	}

	for _, serverCfg := range r.config.Servers {
		if !serverCfg.AutoStart {
			continue
		}
		if err := r.Connect(ctx, serverCfg); err != nil {
			r.logger.Error("failed to connect to MCP server", "server", serverCfg.ID, "error", err)
		}
	}
	return nil
}

// Stop disconnects every connected server.
func (r *Registry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, client := range r.clients {
		if err := client.Close(); err != nil {
			r.logger.Error("failed to close MCP client", "server", id, "error", err)
		}
		delete(r.clients, id)
	}
	return nil
}

// Connect establishes a client for cfg.ID, replacing and closing any
// existing client for that id. Spec §4.E requires connect() to replace the
// existing client rather than no-op on an id that is already live.
func (r *Registry) Connect(ctx context.Context, cfg *ServerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := NewClient(cfg, r.logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}

	old, existed := r.setClient(cfg.ID, client)
	if existed {
		if err := old.Close(); err != nil {
			r.logger.Warn("failed to close superseded MCP client", "server", cfg.ID, "error", err)
		}
		r.logger.Info("replaced MCP client", "server", cfg.ID)
	}

	r.logger.Info("connected to MCP server", "server", cfg.ID, "name", client.ServerInfo().Name)
	return nil
}

// setClient installs client as the live client for id, returning the
// previous client (if any) so the caller can close it after releasing the
// lock. This is the single place the registry mutates r.clients, keeping
// the "connect replaces" invariant in one spot.
func (r *Registry) setClient(id string, client *Client) (old *Client, existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, existed = r.clients[id]
	r.clients[id] = client
	return old, existed
}

// ConnectByID looks up cfg.ID in the registry's configured server list and
// connects it, for callers that only have the id (e.g. a config reload).
func (r *Registry) ConnectByID(ctx context.Context, serverID string) error {
	for _, cfg := range r.config.Servers {
		if cfg.ID == serverID {
			return r.Connect(ctx, cfg)
		}
	}
	return fmt.Errorf("server %q not found in config", serverID)
}

// Disconnect closes and removes the client for serverID, if any.
func (r *Registry) Disconnect(serverID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, exists := r.clients[serverID]
	if !exists {
		return nil
	}
	if err := client.Close(); err != nil {
		return err
	}
	delete(r.clients, serverID)
	r.logger.Info("disconnected from MCP server", "server", serverID)
	return nil
}

func (r *Registry) client(serverID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[serverID]
	return c, ok
}

// ServerIDs returns the ids of all currently connected servers, satisfying
// agent.MCPRouter (used by the dispatcher's longest-prefix match).
func (r *Registry) ServerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// CallTool routes a call to serverID's client and extracts the text content
// of the result, satisfying agent.MCPRouter.
func (r *Registry) CallTool(ctx context.Context, serverID, toolName string, args json.RawMessage, timeout time.Duration) (string, bool, error) {
	client, exists := r.client(serverID)
	if !exists {
		return "", false, fmt.Errorf("server %q not connected", serverID)
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := client.CallTool(callCtx, toolName, args)
	if err != nil {
		return "", false, err
	}

	return result.ExtractText(), result.IsError, nil
}

// RefreshTools re-lists tools for serverID.
func (r *Registry) RefreshTools(ctx context.Context, serverID string) error {
	client, exists := r.client(serverID)
	if !exists {
		return fmt.Errorf("server %q not connected", serverID)
	}
	return client.RefreshCapabilities(ctx)
}

// AllTools returns every connected server's cached tool list.
func (r *Registry) AllTools() map[string][]*MCPTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string][]*MCPTool)
	for id, client := range r.clients {
		if tools := client.Tools(); len(tools) > 0 {
			result[id] = tools
		}
	}
	return result
}

// ToolSchema is a flattened tool description suitable for LLM tool
// definitions, carrying its owning server id for prefix reconstruction.
type ToolSchema struct {
	ServerID    string          `json:"server_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolSchemas flattens AllTools for registry.build (spec §4.B).
func (r *Registry) ToolSchemas() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var schemas []ToolSchema
	for id, client := range r.clients {
		for _, tool := range client.Tools() {
			schemas = append(schemas, ToolSchema{
				ServerID:    id,
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}
	}
	return schemas
}

// ServerStatus reports one configured server's connection state.
type ServerStatus struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Connected bool       `json:"connected"`
	Server    ServerInfo `json:"server"`
	Tools     int        `json:"tools"`
	Resources int        `json:"resources"`
	Prompts   int        `json:"prompts"`
}

// StatusList reports the status of every configured server (status_list()
// operation of spec §4.E).
func (r *Registry) StatusList() []ServerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var statuses []ServerStatus
	for _, cfg := range r.config.Servers {
		status := ServerStatus{ID: cfg.ID, Name: cfg.Name}
		if client, exists := r.clients[cfg.ID]; exists {
			status.Connected = client.Connected()
			status.Server = client.ServerInfo()
			status.Tools = len(client.Tools())
			status.Resources = len(client.Resources())
			status.Prompts = len(client.Prompts())
		}
		statuses = append(statuses, status)
	}
	return statuses
}
