package models

import (
	"fmt"
	"time"
)

// HookEvent is one of the eight lifecycle events hooks can attach to.
type HookEvent string

const (
	HookAgentInvokePre   HookEvent = "agent.invoke.pre"
	HookAgentInvokePost  HookEvent = "agent.invoke.post"
	HookToolExecutePre   HookEvent = "tool.execute.pre"
	HookToolExecutePost  HookEvent = "tool.execute.post"
	HookWorkflowStepPre  HookEvent = "workflow.step.pre"
	HookWorkflowStepPost HookEvent = "workflow.step.post"
	HookRequestPre       HookEvent = "request.pre"
	HookRequestPost      HookEvent = "request.post"
)

// AllHookEvents lists every event type in a stable order.
var AllHookEvents = []HookEvent{
	HookAgentInvokePre,
	HookAgentInvokePost,
	HookToolExecutePre,
	HookToolExecutePost,
	HookWorkflowStepPre,
	HookWorkflowStepPost,
	HookRequestPre,
	HookRequestPost,
}

// IsValid reports whether the event type is known.
func (e HookEvent) IsValid() bool {
	for _, known := range AllHookEvents {
		if e == known {
			return true
		}
	}
	return false
}

// FailMode selects what a hook failure does to the rest of the chain.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

// IsValid reports whether the fail mode is known.
func (m FailMode) IsValid() bool {
	return m == FailOpen || m == FailClosed
}

// HookTimeoutCapMs is the hard ceiling on a per-hook timeout.
const HookTimeoutCapMs = 5000

// HookDefaultTimeoutMs applies when a definition carries no timeout.
const HookDefaultTimeoutMs = 500

// HookDefinition declares one middleware hook. The handler reference is
// opaque to the pipeline; the registry resolves it to an executable hook.
type HookDefinition struct {
	ID        string    `yaml:"id" json:"id"`
	Event     HookEvent `yaml:"event" json:"event"`
	Priority  int       `yaml:"priority" json:"priority"`
	Handler   string    `yaml:"handler" json:"handler"`
	TimeoutMs int       `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	Enabled   bool      `yaml:"enabled" json:"enabled"`
	TenantID  string    `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	FailMode  FailMode  `yaml:"fail_mode,omitempty" json:"fail_mode,omitempty"`
	Tags      []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt time.Time `yaml:"-" json:"created_at,omitempty"`
}

// Timeout returns the effective per-hook deadline.
func (d *HookDefinition) Timeout() time.Duration {
	ms := d.TimeoutMs
	if ms <= 0 {
		ms = HookDefaultTimeoutMs
	}
	if ms > HookTimeoutCapMs {
		ms = HookTimeoutCapMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Validate checks the definition's documented bounds.
func (d *HookDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("hook definition missing id")
	}
	if !d.Event.IsValid() {
		return fmt.Errorf("hook %q: unknown event %q", d.ID, d.Event)
	}
	if d.Priority < 0 || d.Priority > 1000 {
		return fmt.Errorf("hook %q: priority %d outside [0, 1000]", d.ID, d.Priority)
	}
	if d.TimeoutMs < 0 || d.TimeoutMs > HookTimeoutCapMs {
		return fmt.Errorf("hook %q: timeout_ms %d outside (0, %d]", d.ID, d.TimeoutMs, HookTimeoutCapMs)
	}
	if d.FailMode != "" && !d.FailMode.IsValid() {
		return fmt.Errorf("hook %q: unknown fail_mode %q", d.ID, d.FailMode)
	}
	if d.Handler == "" {
		return fmt.Errorf("hook %q: missing handler", d.ID)
	}
	return nil
}
