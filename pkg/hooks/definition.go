// Package hooks runs user-registered extension points around agent
// invocations, tool executions, workflow steps, and HTTP requests. A
// sequential middleware chain carries pre events and can abort the
// operation; a concurrent runner fans out independent post-processing.
package hooks

import (
	"context"
	"sync"
	"time"
)

// EventType names one of the eight lifecycle points hooks can attach to.
type EventType string

const (
	EventAgentInvokePre   EventType = "agent.invoke.pre"
	EventAgentInvokePost  EventType = "agent.invoke.post"
	EventToolExecutePre   EventType = "tool.execute.pre"
	EventToolExecutePost  EventType = "tool.execute.post"
	EventWorkflowStepPre  EventType = "workflow.step.pre"
	EventWorkflowStepPost EventType = "workflow.step.post"
	EventRequestPre       EventType = "request.pre"
	EventRequestPost      EventType = "request.post"
)

// IsValid reports whether the event type is one of the eight lifecycle
// points.
func (e EventType) IsValid() bool {
	switch e {
	case EventAgentInvokePre, EventAgentInvokePost,
		EventToolExecutePre, EventToolExecutePost,
		EventWorkflowStepPre, EventWorkflowStepPost,
		EventRequestPre, EventRequestPost:
		return true
	}
	return false
}

// FailMode says what happens when a hook errors or times out: fail-open
// skips the hook and continues the chain, fail-closed aborts the
// surrounding operation.
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

// Well-known context data keys set by the runtime. Hooks read and write
// arbitrary keys; these are the ones the engine itself populates.
const (
	DataMethod          = "method"
	DataPath            = "path"
	DataHeaders         = "headers"
	DataBody            = "body"
	DataStatusCode      = "status_code"
	DataResponseHeaders = "response_headers"
	DataDurationMS      = "duration_ms"
	DataAgent           = "agent"
	DataTool            = "tool"
	DataStep            = "step"
)

// MetaHookMetrics is the metadata key the builtin metrics collector
// writes its per-event numbers under.
const MetaHookMetrics = "hook_metrics"

// CallNext advances to the next hook in the chain. The sequential
// runner guards each delegate so it runs the downstream at most once.
type CallNext func(ctx context.Context, hc *HookContext) error

// Handler is a hook body. Pre-event hooks typically inspect the context,
// optionally call next, and may abort; post-event hooks usually ignore
// next entirely.
type Handler func(ctx context.Context, hc *HookContext, next CallNext) error

// Hook is one registered extension point.
type Hook struct {
	Name     string
	Event    EventType
	Priority int // 0..1000, ascending execution order
	Enabled  bool
	TenantID string // "" applies system-wide
	FailMode FailMode
	Timeout  time.Duration // 0 uses the default per-hook deadline
	Handler  Handler
}

// HookResult records one attempted hook execution.
type HookResult struct {
	HookName   string `json:"hook_name"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// HookContext carries one event through a chain. The concurrent runner
// shares a single context across goroutines, so all mutation goes
// through the guarded accessors.
type HookContext struct {
	Event    EventType
	TenantID string

	mu          sync.Mutex
	data        map[string]any
	metadata    map[string]any
	results     []HookResult
	abort       bool
	abortReason string
}

// NewHookContext builds a context for one event, copying the initial
// payload.
func NewHookContext(event EventType, tenantID string, data map[string]any) *HookContext {
	hc := &HookContext{
		Event:    event,
		TenantID: tenantID,
		data:     make(map[string]any, len(data)),
		metadata: make(map[string]any),
	}
	for k, v := range data {
		hc.data[k] = v
	}
	return hc
}

// Value returns a payload entry.
func (hc *HookContext) Value(key string) (any, bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	v, ok := hc.data[key]
	return v, ok
}

// SetValue stores a payload entry.
func (hc *HookContext) SetValue(key string, v any) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.data[key] = v
}

// Values returns a copy of the payload map.
func (hc *HookContext) Values() map[string]any {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	out := make(map[string]any, len(hc.data))
	for k, v := range hc.data {
		out[k] = v
	}
	return out
}

// Meta returns a metadata entry.
func (hc *HookContext) Meta(key string) (any, bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	v, ok := hc.metadata[key]
	return v, ok
}

// SetMeta stores a metadata entry.
func (hc *HookContext) SetMeta(key string, v any) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.metadata[key] = v
}

// SetAbort marks the operation aborted. The first reason wins.
func (hc *HookContext) SetAbort(reason string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.abort {
		hc.abort = true
		hc.abortReason = reason
	}
}

// Aborted reports whether a hook aborted the operation, and why.
func (hc *HookContext) Aborted() (bool, string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.abort, hc.abortReason
}

// AddResult appends one attempted-hook record.
func (hc *HookContext) AddResult(r HookResult) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.results = append(hc.results, r)
}

// Results returns a copy of the attempted-hook records.
func (hc *HookContext) Results() []HookResult {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return append([]HookResult(nil), hc.results...)
}
