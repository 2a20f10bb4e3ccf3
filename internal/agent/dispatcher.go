package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nexuscore/agentrt/internal/policy"
)

// Default and control-RPC timeouts for MCP-routed tool calls (spec §4.C/§4.E).
const (
	DefaultMCPTimeout = 120 * time.Second
	ControlMCPTimeout = 30 * time.Second
)

// MaxOutputChars is the combined stdout+stderr truncation limit (spec §4.C).
const MaxOutputChars = 50000

const truncationMarker = "\n... [output truncated]"

// MCPRouter resolves a "mcp_{server_id}_{name}" tool call to its owning
// client and forwards it (spec §4.C item 4, backed by §4.E).
type MCPRouter interface {
	// ServerIDs lists currently connected server ids, used to find the
	// longest matching prefix when splitting a prefixed tool name.
	ServerIDs() []string
	// CallTool forwards a call to serverID's real tool name.
	CallTool(ctx context.Context, serverID, toolName string, args json.RawMessage, timeout time.Duration) (text string, isError bool, err error)
}

// ApprovalGate evaluates a destructive tool call against whatever policy
// governs it (trading limits, human-in-the-loop approval, ...) and, when it
// cannot auto-approve, records a pending approval keyed by tool_call.id.
type ApprovalGate interface {
	Evaluate(ctx context.Context, toolCallID, toolName, agentID string, args json.RawMessage) (approved bool, reason string, err error)
}

// ToolCall is the dispatcher's input: one model-requested tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Dispatcher executes a single tool call against the fixed dispatch chain
// (builtin handlers, then skill modules, then MCP) per spec §4.C.
type Dispatcher struct {
	Builtins  map[string]Tool
	Skills    map[string]Tool
	MCP       MCPRouter
	Approvals ApprovalGate
}

// NewDispatcher constructs a Dispatcher over the given tool maps.
func NewDispatcher(builtins, skills map[string]Tool, mcp MCPRouter, approvals ApprovalGate) *Dispatcher {
	if builtins == nil {
		builtins = map[string]Tool{}
	}
	if skills == nil {
		skills = map[string]Tool{}
	}
	return &Dispatcher{Builtins: builtins, Skills: skills, MCP: mcp, Approvals: approvals}
}

// Execute runs a tool call end to end: argument parsing, dispatch-chain
// lookup, the destructive-tool approval gate, MCP routing, and output
// normalization. It never returns a Go error for a tool-level failure —
// only for call-cannot-even-be-attempted conditions, which is none in this
// implementation; failures surface as ToolResult{Success:false}.
func (d *Dispatcher) Execute(ctx context.Context, tc ToolCall, agentID string) *ToolResult {
	ctx = WithAgentID(ctx, agentID)
	args := tc.Arguments
	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		return fail("invalid tool arguments: not valid JSON")
	}

	tool, found := d.Builtins[tc.Name]
	if !found {
		tool, found = d.Skills[tc.Name]
	}
	if found {
		if err := validateArgs(tool, args); err != nil {
			return fail("invalid tool arguments: " + err.Error())
		}
	}

	if policy.IsDestructive(tc.Name) && d.Approvals != nil {
		approved, reason, err := d.Approvals.Evaluate(ctx, tc.ID, tc.Name, agentID, args)
		if err != nil {
			return fail("approval check failed: " + err.Error())
		}
		if !approved {
			if reason == "" {
				reason = "awaiting human approval"
			}
			return fail(reason)
		}
	}

	if found {
		return d.run(ctx, tool, args)
	}
	if strings.HasPrefix(tc.Name, "mcp_") && d.MCP != nil {
		return d.executeMCP(ctx, tc.Name, args)
	}

	return fail("tool not found: " + tc.Name)
}

func (d *Dispatcher) run(ctx context.Context, tool Tool, args json.RawMessage) *ToolResult {
	res, err := tool.Execute(ctx, args)
	if err != nil {
		return fail(err.Error())
	}
	res.Output = normalizeOutput(res.Output)
	return res
}

// executeMCP strips the "mcp_" prefix and splits on the longest known
// server-id match, forwarding the remainder as the real tool name.
func (d *Dispatcher) executeMCP(ctx context.Context, name string, args json.RawMessage) *ToolResult {
	rest := strings.TrimPrefix(name, "mcp_")

	var serverID, realName string
	longest := -1
	for _, id := range d.MCP.ServerIDs() {
		prefix := id + "_"
		if strings.HasPrefix(rest, prefix) && len(id) > longest {
			serverID = id
			realName = strings.TrimPrefix(rest, prefix)
			longest = len(id)
		}
	}
	if serverID == "" {
		return fail("no MCP server matches tool: " + name)
	}

	timeout := DefaultMCPTimeout
	if isControlRPC(realName) {
		timeout = ControlMCPTimeout
	}

	text, isError, err := d.MCP.CallTool(ctx, serverID, realName, args, timeout)
	if err != nil {
		return fail(err.Error())
	}
	return &ToolResult{Success: !isError, Output: normalizeOutput(text)}
}

func isControlRPC(name string) bool {
	switch name {
	case "ping", "list_tools", "list_resources":
		return true
	default:
		return false
	}
}

// schemaCache memoizes compiled JSON schemas by their raw schema bytes, the
// same pattern pkg/pluginsdk/validation.go uses so a tool's schema is
// compiled once regardless of how many times it is called.
var schemaCache sync.Map

// validateArgs validates args against tool's json_schema before dispatch
// (spec's tool-call argument contract). A tool with an empty or "{}" schema
// skips validation since json-schema treats both as accept-anything.
func validateArgs(tool Tool, args json.RawMessage) error {
	raw := tool.Schema()
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "{}" {
		return nil
	}

	schema, err := compileSchema(raw)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", tool.Name(), err)
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return err
	}
	return nil
}

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

func normalizeOutput(s string) string {
	if len(s) <= MaxOutputChars {
		return s
	}
	cut := MaxOutputChars - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + truncationMarker
}

func fail(reason string) *ToolResult {
	return &ToolResult{Success: false, Output: reason}
}
