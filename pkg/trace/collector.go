package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/models"
)

// ErrTraceNotFound is returned for operations on unknown trace IDs.
var ErrTraceNotFound = errors.New("trace not found")

// DefaultListLimit applies when a filter carries no limit.
const DefaultListLimit = 100

// StartOptions carries the correlators a new trace is created with.
type StartOptions struct {
	TaskID    string
	SessionID string
	RunID     string
	TenantID  string
	AgentID   string
	AgentRole models.AgentRole
	Model     string
}

// Collector owns every live trace. All mutation goes through its methods;
// callers receive copies and never mutate shared state. Completed traces
// stay queryable until evicted by retention.
type Collector struct {
	mu       sync.Mutex
	traces   map[string]*models.Trace
	order    []string
	failures []models.FailureRecord

	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

// NewCollector returns an empty collector. The bus is optional; when set,
// trace lifecycle events are published to it.
func NewCollector(bus *events.Bus, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		traces: make(map[string]*models.Trace),
		bus:    bus,
		logger: logger.With("component", "trace"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the collector's clock; tests use it for deterministic
// timestamps.
func (c *Collector) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// StartTrace creates a new running trace and returns its ID.
func (c *Collector) StartTrace(opts StartOptions) string {
	c.mu.Lock()
	id := uuid.NewString()
	tr := &models.Trace{
		ID:        id,
		TaskID:    opts.TaskID,
		SessionID: opts.SessionID,
		RunID:     opts.RunID,
		TenantID:  opts.TenantID,
		AgentID:   opts.AgentID,
		AgentRole: opts.AgentRole,
		Model:     opts.Model,
		StartedAt: c.now(),
		Outcome:   models.TraceOutcome{Status: models.TraceRunning},
	}
	c.traces[id] = tr
	c.order = append(c.order, id)
	c.mu.Unlock()

	c.publish(events.EventTypeTraceStarted, opts.TenantID, events.TraceChannel(id), map[string]any{
		"trace_id": id,
		"agent_id": opts.AgentID,
		"task_id":  opts.TaskID,
	})
	return id
}

// AddStep appends a step to a running trace.
func (c *Collector) AddStep(traceID, stepID string) error {
	c.mu.Lock()
	tr, ok := c.traces[traceID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	tr.Steps = append(tr.Steps, models.TraceStep{ID: stepID, StartedAt: c.now()})
	tenant := tr.TenantID
	c.mu.Unlock()

	c.publish(events.EventTypeTraceStep, tenant, events.TraceChannel(traceID), map[string]any{
		"trace_id": traceID,
		"step_id":  stepID,
	})
	return nil
}

// AddAction appends an action to the named step, creating the step first if
// it does not exist yet.
func (c *Collector) AddAction(traceID, stepID string, action models.TraceAction) error {
	c.mu.Lock()
	tr, ok := c.traces[traceID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	idx := -1
	for i := range tr.Steps {
		if tr.Steps[i].ID == stepID {
			idx = i
			break
		}
	}
	if idx == -1 {
		tr.Steps = append(tr.Steps, models.TraceStep{ID: stepID, StartedAt: c.now()})
		idx = len(tr.Steps) - 1
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.RecordedAt.IsZero() {
		action.RecordedAt = c.now()
	}
	tr.Steps[idx].Actions = append(tr.Steps[idx].Actions, action)
	tenant := tr.TenantID
	c.mu.Unlock()

	c.publish(events.EventTypeTraceAction, tenant, events.TraceChannel(traceID), map[string]any{
		"trace_id": traceID,
		"step_id":  stepID,
		"tool":     action.Tool,
		"status":   string(action.Status),
	})
	return nil
}

// CompleteTrace finishes a trace: sets the completion timestamp, closes any
// still-open steps with that same timestamp, and computes the duration.
// Completing an already-completed trace is a no-op.
func (c *Collector) CompleteTrace(traceID string, status models.TraceStatus, failureCode, failureMessage string) error {
	c.mu.Lock()
	tr, ok := c.traces[traceID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	if tr.CompletedAt != nil {
		c.mu.Unlock()
		return nil
	}
	done := c.now()
	tr.CompletedAt = &done
	tr.DurationMs = done.Sub(tr.StartedAt).Milliseconds()
	for i := range tr.Steps {
		if tr.Steps[i].CompletedAt == nil {
			tr.Steps[i].CompletedAt = &done
		}
	}
	tr.Outcome.Status = status
	if failureCode != "" {
		tr.Outcome.FailureCode = failureCode
	}
	if failureMessage != "" {
		tr.Outcome.FailureMessage = failureMessage
	}
	tenant := tr.TenantID
	c.mu.Unlock()

	c.publish(events.EventTypeTraceCompleted, tenant, events.TraceChannel(traceID), map[string]any{
		"trace_id": traceID,
		"status":   string(status),
		"code":     failureCode,
	})
	return nil
}

// RecordFailure classifies and stores a failure for a trace, and copies the
// category and message into the trace outcome so trace listings can filter
// by failure category alone.
func (c *Collector) RecordFailure(traceID, message string, category models.FailureCategory, severity models.FailureSeverity, subcode string) (string, error) {
	cls := Classify(subcode)
	if !category.IsValid() {
		category = cls.Category
	}
	if !severity.IsValid() {
		severity = cls.Severity
	}

	c.mu.Lock()
	tr, ok := c.traces[traceID]
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	rec := models.FailureRecord{
		ID:                 uuid.NewString(),
		TraceID:            traceID,
		TenantID:           tr.TenantID,
		Category:           category,
		Severity:           severity,
		Subcode:            subcode,
		Message:            message,
		Retryable:          cls.Retryable,
		EscalationRequired: cls.EscalationRequired,
		RecordedAt:         c.now(),
	}
	c.failures = append(c.failures, rec)
	tr.Outcome.FailureCategory = category
	tr.Outcome.FailureMessage = message
	if tr.Outcome.FailureCode == "" {
		tr.Outcome.FailureCode = subcode
	}
	tenant := tr.TenantID
	c.mu.Unlock()

	c.publish(events.EventTypeFailureRecorded, tenant, events.TraceChannel(traceID), map[string]any{
		"trace_id": traceID,
		"subcode":  subcode,
		"category": string(category),
		"severity": string(severity),
	})
	return rec.ID, nil
}

// Get returns a copy of one trace.
func (c *Collector) Get(traceID string) (models.Trace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.traces[traceID]
	if !ok {
		return models.Trace{}, fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
	}
	return copyTrace(tr), nil
}

// ListTraces returns traces matching the filters, most recent first.
func (c *Collector) ListTraces(filters models.TraceFilters) []models.Trace {
	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Trace, 0, limit)
	for i := len(c.order) - 1; i >= 0 && len(out) < limit; i-- {
		tr := c.traces[c.order[i]]
		if filters.TenantID != "" && tr.TenantID != filters.TenantID {
			continue
		}
		if filters.Status != "" && tr.Outcome.Status != filters.Status {
			continue
		}
		if filters.TaskID != "" && tr.TaskID != filters.TaskID {
			continue
		}
		if filters.Category != "" && tr.Outcome.FailureCategory != filters.Category {
			continue
		}
		out = append(out, copyTrace(tr))
	}
	return out
}

// ListFailures returns failure records matching the filters, most recent
// first.
func (c *Collector) ListFailures(filters models.TraceFilters) []models.FailureRecord {
	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.FailureRecord, 0, limit)
	for i := len(c.failures) - 1; i >= 0 && len(out) < limit; i-- {
		rec := c.failures[i]
		if filters.TenantID != "" && rec.TenantID != filters.TenantID {
			continue
		}
		if filters.Category != "" && rec.Category != filters.Category {
			continue
		}
		if filters.TaskID != "" {
			tr, ok := c.traces[rec.TraceID]
			if !ok || tr.TaskID != filters.TaskID {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// FailuresFor returns copies of one trace's failure records, in
// insertion order.
func (c *Collector) FailuresFor(traceID string) []models.FailureRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.FailureRecord
	for i := range c.failures {
		if c.failures[i].TraceID == traceID {
			out = append(out, c.failures[i])
		}
	}
	return out
}

// Evict drops completed traces older than cutoff and their failures.
// Returns how many traces were removed. Running traces are never evicted.
func (c *Collector) Evict(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	kept := c.order[:0]
	for _, id := range c.order {
		tr := c.traces[id]
		if tr.CompletedAt != nil && tr.CompletedAt.Before(cutoff) {
			delete(c.traces, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	if removed > 0 {
		keptFailures := c.failures[:0]
		for _, rec := range c.failures {
			if _, ok := c.traces[rec.TraceID]; ok {
				keptFailures = append(keptFailures, rec)
			}
		}
		c.failures = keptFailures
	}
	return removed
}

// Len reports how many traces the collector holds.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.traces)
}

func (c *Collector) publish(eventType, tenant, channel string, payload map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Type:     eventType,
		Channel:  channel,
		TenantID: tenant,
		Payload:  payload,
	})
}

// copyTrace deep-copies the mutable slices so callers cannot reach shared
// state.
func copyTrace(tr *models.Trace) models.Trace {
	out := *tr
	out.Steps = make([]models.TraceStep, len(tr.Steps))
	for i := range tr.Steps {
		out.Steps[i] = tr.Steps[i]
		out.Steps[i].Actions = append([]models.TraceAction(nil), tr.Steps[i].Actions...)
	}
	return out
}

// SortFailuresBySeverity orders failures critical-first for reporting.
func SortFailuresBySeverity(records []models.FailureRecord) {
	rank := map[models.FailureSeverity]int{
		models.SeverityCritical: 0,
		models.SeverityHigh:     1,
		models.SeverityMedium:   2,
		models.SeverityLow:      3,
	}
	sort.SliceStable(records, func(i, j int) bool {
		return rank[records[i].Severity] < rank[records[j].Severity]
	})
}
