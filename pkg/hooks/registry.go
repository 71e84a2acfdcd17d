package hooks

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	// MaxHooksPerEvent caps registrations per event type; the next
	// registration past the cap fails.
	MaxHooksPerEvent = 20

	MinPriority = 0
	MaxPriority = 1000

	// DefaultHookTimeout bounds a single hook execution; per-hook
	// overrides are clamped to MaxHookTimeout.
	DefaultHookTimeout = 500 * time.Millisecond
	MaxHookTimeout     = 5 * time.Second
)

var (
	ErrUnknownEvent    = errors.New("unknown hook event type")
	ErrEventFull       = errors.New("hook event type at capacity")
	ErrDuplicateHook   = errors.New("hook name already registered for event")
	ErrInvalidPriority = errors.New("hook priority out of range")
	ErrNilHandler      = errors.New("hook handler is nil")
)

// Registry owns hook definitions. Runners receive value copies so a
// concurrently toggled enabled flag never races a running chain.
type Registry struct {
	mu     sync.RWMutex
	hooks  map[EventType][]Hook
	logger *slog.Logger
}

// NewRegistry returns an empty hook registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		hooks:  make(map[EventType][]Hook),
		logger: logger.With("component", "hook_registry"),
	}
}

// Register validates and stores a hook. Hooks are kept in ascending
// priority order; equal priorities keep registration order.
func (r *Registry) Register(h Hook) error {
	if !h.Event.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, h.Event)
	}
	if h.Priority < MinPriority || h.Priority > MaxPriority {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, h.Priority)
	}
	if h.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, h.Name)
	}
	if h.FailMode == "" {
		h.FailMode = FailOpen
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.hooks[h.Event]
	if len(existing) >= MaxHooksPerEvent {
		return fmt.Errorf("%w: %s holds %d hooks", ErrEventFull, h.Event, len(existing))
	}
	for _, reg := range existing {
		if reg.Name == h.Name {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateHook, h.Event, h.Name)
		}
	}
	r.hooks[h.Event] = append(existing, h)
	sort.SliceStable(r.hooks[h.Event], func(i, j int) bool {
		return r.hooks[h.Event][i].Priority < r.hooks[h.Event][j].Priority
	})

	r.logger.Info("hook registered",
		"event", h.Event, "name", h.Name, "priority", h.Priority,
		"tenant_id", h.TenantID, "fail_mode", h.FailMode)
	return nil
}

// Unregister removes a hook by event and name.
func (r *Registry) Unregister(event EventType, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := r.hooks[event]
	for i, h := range hooks {
		if h.Name == name {
			r.hooks[event] = append(hooks[:i:i], hooks[i+1:]...)
			return true
		}
	}
	return false
}

// SetEnabled toggles a hook without removing it.
func (r *Registry) SetEnabled(event EventType, name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := r.hooks[event]
	for i := range hooks {
		if hooks[i].Name == name {
			hooks[i].Enabled = enabled
			return true
		}
	}
	return false
}

// HooksFor returns copies of the hooks for an event visible to a
// tenant: system hooks (empty tenant id) plus the tenant's own, in
// ascending priority order.
func (r *Registry) HooksFor(event EventType, tenantID string) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Hook
	for _, h := range r.hooks[event] {
		if h.TenantID == "" || h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	return out
}

// Count returns the number of hooks registered for an event, all
// tenants included.
func (r *Registry) Count(event EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[event])
}
