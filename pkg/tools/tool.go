// Package tools defines the tool contract the reasoning loop executes
// against, plus the builtin implementations: shell, file operations,
// web fetch, and fact recall.
package tools

import (
	"context"
	"fmt"
)

// Result is what a tool execution hands back to the reasoning loop.
// Success false with a non-empty Error is an observation the model can
// recover from, not a loop failure.
type Result struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Invocation carries the caller-side facts a tool may need: whose data
// it touches and where it runs.
type Invocation struct {
	TenantID string
	AgentID  string
	WorkDir  string
	Env      map[string]string
}

// Tool is one executable capability exposed to the model. Name must be
// unique within a registry; Schema returns the JSON schema the loop
// validates arguments against before execution.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Execute(ctx context.Context, args map[string]any, inv Invocation) Result
}

// Errorf is a convenience for failure results.
func Errorf(format string, a ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, a...)}
}

// Textf is a convenience for success results.
func Textf(format string, a ...any) Result {
	return Result{Success: true, Content: fmt.Sprintf(format, a...)}
}
