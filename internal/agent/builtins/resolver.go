// Package builtins implements the builtin tool set, which passes through
// the agent's capability filter like every other tool source: shell exec, HTTP fetch,
// workspace filesystem access, soul files, memory recall, web search,
// task/agent introspection, skills, and cross-agent messaging.
package builtins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/nexuscore/agentrt/internal/agent"
)

// resolver resolves and validates workspace-relative paths, refusing to
// escape the workspace root unless allowEscape is set.
type resolver struct {
	root        string
	allowEscape bool
}

func (r resolver) resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		if r.allowEscape {
			return targetAbs, nil
		}
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetAbs, nil
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Output: message, Success: false}
	}
	return &agent.ToolResult{Output: string(payload), Success: false}
}

func toolOK(v any) *agent.ToolResult {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err))
	}
	return &agent.ToolResult{Output: string(payload), Success: true}
}

// schemaReflector is shared across every structSchema call: DoNotReference
// keeps each tool's schema self-contained (no "$ref"/"$defs" the model's
// schema consumer would need to resolve), matching the flat object shape
// the hand-written schemas this replaces used to produce directly.
var schemaReflector = &jsonschema.Reflector{
	DoNotReference:            true,
	AllowAdditionalProperties: true,
}

// structSchema generates a tool's json_schema by reflecting over T's
// `jsonschema` struct tags, rather than hand-assembling a map[string]any
// literal. T is normally the same struct a tool's Execute unmarshals
// params into, so the schema and the decode target can never drift apart.
func structSchema[T any]() json.RawMessage {
	schema := schemaReflector.Reflect(new(T))
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
