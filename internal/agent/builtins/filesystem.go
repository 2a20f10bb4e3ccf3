package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexuscore/agentrt/internal/agent"
)

const filesystemMaxReadBytes = 200000

// FilesystemReadTool reads a file within the workspace.
type FilesystemReadTool struct{ resolver resolver }

func NewFilesystemReadTool(workspace string) *FilesystemReadTool {
	return &FilesystemReadTool{resolver: resolver{root: workspace}}
}

func (t *FilesystemReadTool) Name() string        { return "filesystem_read" }
func (t *FilesystemReadTool) Description() string { return "Read a file from the agent workspace." }
// FilesystemReadToolParams is filesystem_read's tool-call argument shape.
type FilesystemReadToolParams struct {
	Path     string `json:"path" jsonschema:"required,description=Path relative to the workspace."`
	MaxBytes int    `json:"max_bytes" jsonschema:"minimum=0,description=Maximum bytes to read."`
}

func (t *FilesystemReadTool) Schema() json.RawMessage {
	return structSchema[FilesystemReadToolParams]()
}

func (t *FilesystemReadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input FilesystemReadToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	resolved, err := t.resolver.resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}
	limit := filesystemMaxReadBytes
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}
	f, err := os.Open(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("open file: %v", err)), nil
	}
	defer f.Close()
	buf, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return toolError(fmt.Sprintf("read file: %v", err)), nil
	}
	truncated := len(buf) > limit
	if truncated {
		buf = buf[:limit]
	}
	return toolOK(map[string]any{"path": input.Path, "content": string(buf), "truncated": truncated}), nil
}

// FilesystemWriteTool writes a file within the workspace. Not destructive:
// the workspace boundary already sandboxes it.
type FilesystemWriteTool struct{ resolver resolver }

func NewFilesystemWriteTool(workspace string) *FilesystemWriteTool {
	return &FilesystemWriteTool{resolver: resolver{root: workspace}}
}

func (t *FilesystemWriteTool) Name() string { return "filesystem_write" }
func (t *FilesystemWriteTool) Description() string {
	return "Write content to a file inside the agent workspace."
}
// FilesystemWriteToolParams is filesystem_write's tool-call argument shape.
type FilesystemWriteToolParams struct {
	Path    string `json:"path" jsonschema:"required,description=Path relative to the workspace."`
	Content string `json:"content" jsonschema:"required,description=File contents to write."`
	Append  bool   `json:"append" jsonschema:"description=Append instead of overwrite."`
}

func (t *FilesystemWriteTool) Schema() json.RawMessage {
	return structSchema[FilesystemWriteToolParams]()
}

func (t *FilesystemWriteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return executeFilesystemWrite(t.resolver, params)
}

// FilesystemWriteOutsideWorkspaceTool writes to an absolute path outside
// the workspace. Destructive (gated by policy.IsDestructive under its own
// name).
type FilesystemWriteOutsideWorkspaceTool struct{ resolver resolver }

func NewFilesystemWriteOutsideWorkspaceTool(workspace string) *FilesystemWriteOutsideWorkspaceTool {
	return &FilesystemWriteOutsideWorkspaceTool{resolver: resolver{root: workspace, allowEscape: true}}
}

func (t *FilesystemWriteOutsideWorkspaceTool) Name() string {
	return "filesystem_write_outside_workspace"
}
func (t *FilesystemWriteOutsideWorkspaceTool) Description() string {
	return "Write content to an absolute path outside the agent workspace. Requires approval."
}
// FilesystemWriteOutsideWorkspaceToolParams is
// filesystem_write_outside_workspace's tool-call argument shape.
type FilesystemWriteOutsideWorkspaceToolParams struct {
	Path    string `json:"path" jsonschema:"required,description=Absolute path to write."`
	Content string `json:"content" jsonschema:"required,description=File contents to write."`
	Append  bool   `json:"append" jsonschema:"description=Append instead of overwrite."`
}

func (t *FilesystemWriteOutsideWorkspaceTool) Schema() json.RawMessage {
	return structSchema[FilesystemWriteOutsideWorkspaceToolParams]()
}

func (t *FilesystemWriteOutsideWorkspaceTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return executeFilesystemWrite(t.resolver, params)
}

func executeFilesystemWrite(r resolver, params json.RawMessage) (*agent.ToolResult, error) {
	var input FilesystemWriteToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Path) == "" {
		return toolError("path is required"), nil
	}
	resolved, err := r.resolve(input.Path)
	if err != nil {
		return toolError(err.Error()), nil
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return toolError(fmt.Sprintf("create directory: %v", err)), nil
	}
	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return toolError(fmt.Sprintf("open file: %v", err)), nil
	}
	defer f.Close()
	n, err := f.WriteString(input.Content)
	if err != nil {
		return toolError(fmt.Sprintf("write file: %v", err)), nil
	}
	return toolOK(map[string]any{"path": input.Path, "bytes_written": n}), nil
}

// FilesystemListTool lists directory entries within the workspace.
type FilesystemListTool struct{ resolver resolver }

func NewFilesystemListTool(workspace string) *FilesystemListTool {
	return &FilesystemListTool{resolver: resolver{root: workspace}}
}

func (t *FilesystemListTool) Name() string        { return "filesystem_list" }
func (t *FilesystemListTool) Description() string { return "List directory entries in the agent workspace." }
// FilesystemListToolParams is filesystem_list's tool-call argument shape.
type FilesystemListToolParams struct {
	Path string `json:"path" jsonschema:"description=Directory path relative to the workspace (default: root)."`
}

func (t *FilesystemListTool) Schema() json.RawMessage {
	return structSchema[FilesystemListToolParams]()
}

func (t *FilesystemListTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input FilesystemListToolParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	dir := input.Path
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	resolved, err := t.resolver.resolve(dir)
	if err != nil {
		return toolError(err.Error()), nil
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return toolError(fmt.Sprintf("list directory: %v", err)), nil
	}
	names := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		names = append(names, map[string]any{"name": e.Name(), "is_dir": e.IsDir()})
	}
	return toolOK(map[string]any{"path": dir, "entries": names}), nil
}
