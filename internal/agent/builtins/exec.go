package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nexuscore/agentrt/internal/agent"
)

// ExecTool runs a shell command in the agent workspace. Always destructive
// (gated by policy.IsDestructive("exec")).
type ExecTool struct {
	workspace      string
	defaultTimeout time.Duration
}

// NewExecTool creates an exec tool scoped to workspace.
func NewExecTool(workspace string) *ExecTool {
	return &ExecTool{workspace: workspace, defaultTimeout: 30 * time.Second}
}

func (t *ExecTool) Name() string { return "exec" }

func (t *ExecTool) Description() string {
	return "Run a shell command in the agent workspace and return its stdout/stderr/exit code."
}

// ExecToolParams is exec's tool-call argument shape, and the schema
// structSchema reflects into the tool's json_schema.
type ExecToolParams struct {
	Command        string `json:"command" jsonschema:"required,description=Shell command to execute."`
	TimeoutSeconds int    `json:"timeout_seconds" jsonschema:"minimum=0,description=Timeout in seconds (0 = default)."`
}

func (t *ExecTool) Schema() json.RawMessage {
	return structSchema[ExecToolParams]()
}

func (t *ExecTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input ExecToolParams
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return toolError("command is required"), nil
	}

	timeout := t.defaultTimeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = t.workspace
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return toolError(fmt.Sprintf("run command: %v", err)), nil
		}
	}

	return toolOK(map[string]any{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}), nil
}
