// Package events provides in-process event delivery for traces, workflow
// runs, governance decisions, and the activity feed. Publishers fan out to
// bounded per-subscriber buffers; slow subscribers lose oldest entries
// rather than blocking the engine.
package events

import "time"

// Event types published on the bus.
const (
	EventTypeTraceStarted   = "trace.started"
	EventTypeTraceStep      = "trace.step"
	EventTypeTraceAction    = "trace.action"
	EventTypeTraceCompleted = "trace.completed"

	EventTypeRunQueued    = "run.queued"
	EventTypeRunStarted   = "run.started"
	EventTypeRunStep      = "run.step"
	EventTypeRunCompleted = "run.completed"

	EventTypeGovernanceDenied = "governance.denied"
	EventTypeEscalation       = "autonomy.escalation"
	EventTypeGateEvaluated    = "gate.evaluated"
	EventTypeFailureRecorded  = "failure.recorded"
)

// GlobalChannel carries every event; per-entity channels narrow delivery.
const GlobalChannel = "activity"

// TraceChannel returns the channel for one trace's events.
// Format: "trace:{trace_id}"
func TraceChannel(traceID string) string {
	return "trace:" + traceID
}

// RunChannel returns the channel for one workflow run's events.
// Format: "run:{run_id}"
func RunChannel(runID string) string {
	return "run:" + runID
}

// Event is one bus message. Payload contents depend on Type.
type Event struct {
	Type      string         `json:"type"`
	Channel   string         `json:"channel"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
