package hooks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventStats is the metric triple the collector keeps per event type.
type EventStats struct {
	Count           int64 `json:"count"`
	LastDurationMS  int64 `json:"last_duration_ms"`
	TotalDurationMS int64 `json:"total_duration_ms"`
}

// MetricsCollector is a builtin hook that counts invocations per event
// type and measures the downstream duration through call_next. After
// each invocation it writes the event's current numbers into
// context.metadata under MetaHookMetrics. An optional observer receives
// every measurement, which is how the telemetry layer exports them.
type MetricsCollector struct {
	mu       sync.Mutex
	stats    map[EventType]*EventStats
	observer func(EventType, time.Duration)
}

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{stats: make(map[EventType]*EventStats)}
}

// WithObserver forwards every measurement to fn. Returns the collector
// for chaining.
func (c *MetricsCollector) WithObserver(fn func(EventType, time.Duration)) *MetricsCollector {
	c.observer = fn
	return c
}

// Hook returns a registrable hook bound to one event type.
func (c *MetricsCollector) Hook(event EventType, priority int) Hook {
	return Hook{
		Name:     "builtin.metrics",
		Event:    event,
		Priority: priority,
		Enabled:  true,
		FailMode: FailOpen,
		Handler:  c.handle,
	}
}

func (c *MetricsCollector) handle(ctx context.Context, hc *HookContext, next CallNext) error {
	start := time.Now()
	err := next(ctx, hc)
	elapsed := time.Since(start)

	c.mu.Lock()
	s, ok := c.stats[hc.Event]
	if !ok {
		s = &EventStats{}
		c.stats[hc.Event] = s
	}
	s.Count++
	s.LastDurationMS = elapsed.Milliseconds()
	s.TotalDurationMS += elapsed.Milliseconds()
	snapshot := *s
	c.mu.Unlock()

	hc.SetMeta(MetaHookMetrics, snapshot)
	if c.observer != nil {
		c.observer(hc.Event, elapsed)
	}
	return err
}

// Stats returns the collected numbers for one event type.
func (c *MetricsCollector) Stats(event EventType) (EventStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[event]
	if !ok {
		return EventStats{}, false
	}
	return *s, true
}

// auditKeys are the well-known payload fields worth echoing into the
// audit line when present.
var auditKeys = []string{DataAgent, DataTool, DataStep, DataMethod, DataPath, DataStatusCode}

// AuditLogger returns a builtin hook that appends one structured log
// entry per invocation with the event type, tenant, and the well-known
// payload fields present on the context.
func AuditLogger(logger *slog.Logger, event EventType, priority int) Hook {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "hook_audit")
	return Hook{
		Name:     "builtin.audit",
		Event:    event,
		Priority: priority,
		Enabled:  true,
		FailMode: FailOpen,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			attrs := []any{"event", hc.Event, "tenant_id", hc.TenantID}
			for _, key := range auditKeys {
				if v, ok := hc.Value(key); ok {
					attrs = append(attrs, key, v)
				}
			}
			log.Info("hook event", attrs...)
			return next(ctx, hc)
		},
	}
}
