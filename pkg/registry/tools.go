package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/praetorworks/praetor/pkg/tools"
)

var (
	ErrToolNotFound = errors.New("tool not found")
	ErrToolExists   = errors.New("tool already registered")
)

// ToolRegistry owns the tool implementations the reasoning loop may
// call, keyed by tool name.
type ToolRegistry struct {
	mu     sync.RWMutex
	tools  map[string]tools.Tool
	logger *slog.Logger
}

// NewToolRegistry returns an empty tool registry.
func NewToolRegistry(logger *slog.Logger) *ToolRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolRegistry{
		tools:  make(map[string]tools.Tool),
		logger: logger.With("component", "tool_registry"),
	}
}

// Register stores a tool. Duplicate names fail; unregister first to
// replace an implementation.
func (r *ToolRegistry) Register(t tools.Tool) error {
	if t == nil || t.Name() == "" {
		return errors.New("tool must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrToolExists, t.Name())
	}
	r.tools[t.Name()] = t
	r.logger.Info("tool registered", "name", t.Name())
	return nil
}

// Get returns the named tool.
func (r *ToolRegistry) Get(name string) (tools.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Names returns all registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Select resolves a subset of tools by name, preserving request order.
// Unknown names fail so an agent definition cannot silently lose a
// tool.
func (r *ToolRegistry) Select(names []string) ([]tools.Tool, error) {
	out := make([]tools.Tool, 0, len(names))
	for _, name := range names {
		t, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	return true
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
