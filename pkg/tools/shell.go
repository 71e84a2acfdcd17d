package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// ShellOutputCap bounds combined shell output handed back to the model.
const ShellOutputCap = 64 * 1024

// DefaultShellTimeout applies when the caller sets none.
const DefaultShellTimeout = 60 * time.Second

// ShellTool runs a command line through `sh -c`. Governance validates the
// command against the allowlist before this tool ever executes.
type ShellTool struct {
	Timeout time.Duration
}

// NewShellTool returns a shell tool with the default timeout.
func NewShellTool() *ShellTool {
	return &ShellTool{Timeout: DefaultShellTimeout}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Description() string {
	return "Run a shell command and return its combined output."
}

func (t *ShellTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Command line to execute",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     600,
				"description": "Optional per-call timeout override",
			},
		},
		"required":             []any{"command"},
		"additionalProperties": false,
	}
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]any, inv Invocation) Result {
	command, _ := args["command"].(string)
	if command == "" {
		return Errorf("shell: command is required")
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if inv.WorkDir != "" {
		cmd.Dir = inv.WorkDir
	}
	for k, v := range inv.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()
	if len(output) > ShellOutputCap {
		output = output[:ShellOutputCap] + "\n[output truncated]"
	}
	if ctx.Err() == context.DeadlineExceeded {
		return Errorf("shell: command timed out after %s", timeout)
	}
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Result{
			Success: false,
			Content: output,
			Error:   fmt.Sprintf("exit code %d: %v", exitCode, err),
		}
	}
	return Result{Success: true, Content: output}
}
