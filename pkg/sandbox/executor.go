// Package sandbox executes code on behalf of workflow execute-code steps
// under resource caps. Adapters implement the executor contract; the
// registry resolves adapter IDs to implementations at load time.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Output capture caps. Streams over the cap are truncated and the
// Truncated flag is set.
const (
	StdoutCap = 1 << 20 // 1 MiB
	StderrCap = 256 << 10
)

// DefaultTimeout applies when a contract carries no timeout.
const DefaultTimeout = 120 * time.Second

// Limits caps one execution.
type Limits struct {
	TimeoutMs   int   `json:"timeout_ms,omitempty"`
	MemoryBytes int64 `json:"memory_bytes,omitempty"`
	CPUQuota    int64 `json:"cpu_quota,omitempty"`
	NetworkOff  bool  `json:"network_off,omitempty"`
}

// Timeout returns the effective execution deadline.
func (l Limits) Timeout() time.Duration {
	if l.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(l.TimeoutMs) * time.Millisecond
}

// Inputs carries what the code needs to run.
type Inputs struct {
	Command   []string          `json:"command,omitempty"`
	Code      string            `json:"code,omitempty"`
	Arguments map[string]any    `json:"arguments,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	WorkDir   string            `json:"work_dir,omitempty"`
}

// Contract is one execution request against an adapter.
type Contract struct {
	ToolID    string `json:"tool_id"`
	AdapterID string `json:"adapter_id,omitempty"`
	Inputs    Inputs `json:"inputs"`
	Sandbox   Limits `json:"sandbox"`
}

// Output is what an adapter hands back.
type Output struct {
	Success    bool   `json:"success"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// Executor is one sandbox adapter.
type Executor interface {
	AdapterID() string
	Execute(ctx context.Context, c Contract) (Output, error)
}

// ErrAdapterNotFound means no adapter matches the contract's adapter ID.
var ErrAdapterNotFound = errors.New("sandbox adapter not found")

// Registry resolves adapter IDs to executors. Built once at startup.
type Registry struct {
	mu        sync.RWMutex
	adapters  map[string]Executor
	defaultID string
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Executor)}
}

// Register stores an adapter. The first registered adapter becomes the
// default for contracts with no adapter ID.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.adapters) == 0 {
		r.defaultID = e.AdapterID()
	}
	r.adapters[e.AdapterID()] = e
}

// Resolve returns the adapter for the given ID, or the default for "".
func (r *Registry) Resolve(adapterID string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if adapterID == "" {
		adapterID = r.defaultID
	}
	e, ok := r.adapters[adapterID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, adapterID)
	}
	return e, nil
}

// Execute resolves the contract's adapter and runs it.
func (r *Registry) Execute(ctx context.Context, c Contract) (Output, error) {
	e, err := r.Resolve(c.AdapterID)
	if err != nil {
		return Output{}, err
	}
	return e.Execute(ctx, c)
}

// capWriter collects up to cap bytes and records overflow.
type capWriter struct {
	buf       []byte
	cap       int
	truncated bool
}

func newCapWriter(cap int) *capWriter {
	return &capWriter{cap: cap}
}

func (w *capWriter) Write(p []byte) (int, error) {
	remaining := w.cap - len(w.buf)
	if remaining > 0 {
		if len(p) <= remaining {
			w.buf = append(w.buf, p...)
		} else {
			w.buf = append(w.buf, p[:remaining]...)
			w.truncated = true
		}
	} else if len(p) > 0 {
		w.truncated = true
	}
	// Report full consumption so the producer never errors on overflow.
	return len(p), nil
}

func (w *capWriter) String() string { return string(w.buf) }
