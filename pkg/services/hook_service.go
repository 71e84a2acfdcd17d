package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/praetorworks/praetor/pkg/hooks"
)

// HookService manages the hook registry: installing the builtin hooks,
// registering custom ones, and exposing a serializable view of what is
// wired where.
type HookService struct {
	registry *hooks.Registry
	metrics  *hooks.MetricsCollector
	logger   *slog.Logger
}

// NewHookService builds the service around an existing registry.
func NewHookService(registry *hooks.Registry, metrics *hooks.MetricsCollector, logger *slog.Logger) *HookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HookService{
		registry: registry,
		metrics:  metrics,
		logger:   logger.With("component", "hook_service"),
	}
}

// InstallBuiltins registers the metrics collector and audit logger on
// every lifecycle event. Metrics run first so their timing covers the
// rest of the chain.
func (s *HookService) InstallBuiltins() error {
	events := []hooks.EventType{
		hooks.EventAgentInvokePre, hooks.EventAgentInvokePost,
		hooks.EventToolExecutePre, hooks.EventToolExecutePost,
		hooks.EventWorkflowStepPre, hooks.EventWorkflowStepPost,
		hooks.EventRequestPre, hooks.EventRequestPost,
	}
	for _, event := range events {
		if s.metrics != nil {
			if err := s.registry.Register(s.metrics.Hook(event, 0)); err != nil {
				return fmt.Errorf("failed to install metrics hook for %s: %w", event, err)
			}
		}
		if err := s.registry.Register(hooks.AuditLogger(s.logger, event, 10)); err != nil {
			return fmt.Errorf("failed to install audit hook for %s: %w", event, err)
		}
	}
	return nil
}

// Register adds a custom hook, mapping registry sentinels onto service
// errors.
func (s *HookService) Register(h hooks.Hook) error {
	if err := s.registry.Register(h); err != nil {
		switch {
		case errors.Is(err, hooks.ErrDuplicateHook):
			return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
		case errors.Is(err, hooks.ErrUnknownEvent),
			errors.Is(err, hooks.ErrInvalidPriority),
			errors.Is(err, hooks.ErrNilHandler),
			errors.Is(err, hooks.ErrEventFull):
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		default:
			return err
		}
	}
	s.logger.Info("hook registered", "hook", h.Name, "event", h.Event, "priority", h.Priority)
	return nil
}

// Unregister removes a hook by event and name.
func (s *HookService) Unregister(event hooks.EventType, name string) error {
	if !s.registry.Unregister(event, name) {
		return fmt.Errorf("%w: hook %q on %s", ErrNotFound, name, event)
	}
	return nil
}

// SetEnabled toggles a hook without removing it.
func (s *HookService) SetEnabled(event hooks.EventType, name string, enabled bool) error {
	if !s.registry.SetEnabled(event, name, enabled) {
		return fmt.Errorf("%w: hook %q on %s", ErrNotFound, name, event)
	}
	return nil
}

// HookInfo is the serializable view of one registered hook.
type HookInfo struct {
	Name     string          `json:"name"`
	Event    hooks.EventType `json:"event"`
	Priority int             `json:"priority"`
	Enabled  bool            `json:"enabled"`
	TenantID string          `json:"tenant_id,omitempty"`
	FailMode hooks.FailMode  `json:"fail_mode"`
	Timeout  time.Duration   `json:"timeout,omitempty"`
}

// List returns the hooks visible to a tenant for one event.
func (s *HookService) List(event hooks.EventType, tenantID string) []HookInfo {
	registered := s.registry.HooksFor(event, tenantID)
	out := make([]HookInfo, 0, len(registered))
	for _, h := range registered {
		out = append(out, HookInfo{
			Name:     h.Name,
			Event:    h.Event,
			Priority: h.Priority,
			Enabled:  h.Enabled,
			TenantID: h.TenantID,
			FailMode: h.FailMode,
			Timeout:  h.Timeout,
		})
	}
	return out
}

// Stats returns the metrics collector's numbers for one event.
func (s *HookService) Stats(event hooks.EventType) (hooks.EventStats, bool) {
	if s.metrics == nil {
		return hooks.EventStats{}, false
	}
	return s.metrics.Stats(event)
}
