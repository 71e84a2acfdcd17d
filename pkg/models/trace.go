package models

import "time"

// TraceStatus is the lifecycle status of a trace.
type TraceStatus string

const (
	TraceRunning   TraceStatus = "running"
	TraceCompleted TraceStatus = "completed"
	TraceFailed    TraceStatus = "failed"
	TraceTimeout   TraceStatus = "timeout"
	TraceCancelled TraceStatus = "cancelled"
)

// IsTerminal reports whether the status ends a trace.
func (s TraceStatus) IsTerminal() bool {
	return s != TraceRunning
}

// ActionStatus is the outcome of one recorded tool action.
type ActionStatus string

const (
	ActionSuccess ActionStatus = "success"
	ActionFailure ActionStatus = "failure"
	ActionTimeout ActionStatus = "timeout"
	ActionSkipped ActionStatus = "skipped"
)

// TraceAction is one tool invocation inside a step, in insertion order.
type TraceAction struct {
	ID         string       `json:"id"`
	Tool       string       `json:"tool"`
	Input      string       `json:"input,omitempty"`
	Output     string       `json:"output,omitempty"`
	ExitCode   int          `json:"exit_code"`
	DurationMs int64        `json:"duration_ms"`
	Status     ActionStatus `json:"status"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// TraceStep groups the actions of one logical step of an execution.
type TraceStep struct {
	ID          string        `json:"id"`
	Actions     []TraceAction `json:"actions,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// TraceOutcome summarizes how a trace ended.
type TraceOutcome struct {
	Status          TraceStatus     `json:"status"`
	FailureCode     string          `json:"failure_code,omitempty"`
	FailureMessage  string          `json:"failure_message,omitempty"`
	FailureCategory FailureCategory `json:"failure_category,omitempty"`
}

// Trace is the append-only record of a single agent execution. Between
// creation and completion only the owning collector mutates it.
type Trace struct {
	ID          string       `json:"id"`
	TaskID      string       `json:"task_id,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	RunID       string       `json:"run_id,omitempty"`
	TenantID    string       `json:"tenant_id,omitempty"`
	AgentID     string       `json:"agent_id,omitempty"`
	AgentRole   AgentRole    `json:"agent_role,omitempty"`
	Model       string       `json:"model,omitempty"`
	Steps       []TraceStep  `json:"steps,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DurationMs  int64        `json:"duration_ms,omitempty"`
	Outcome     TraceOutcome `json:"outcome"`
}

// TraceFilters narrows trace and failure listings.
type TraceFilters struct {
	TenantID string          `json:"tenant_id,omitempty"`
	Status   TraceStatus     `json:"status,omitempty"`
	TaskID   string          `json:"task_id,omitempty"`
	Category FailureCategory `json:"category,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// FailureCategory is the top level of the failure taxonomy.
type FailureCategory string

const (
	FailureValidation FailureCategory = "validation"
	FailureExecution  FailureCategory = "execution"
	FailureResource   FailureCategory = "resource"
	FailureSecurity   FailureCategory = "security"
	FailureDependency FailureCategory = "dependency"
	FailureUnknown    FailureCategory = "unknown"
)

// IsValid reports whether the category is part of the taxonomy.
func (c FailureCategory) IsValid() bool {
	switch c {
	case FailureValidation, FailureExecution, FailureResource,
		FailureSecurity, FailureDependency, FailureUnknown:
		return true
	}
	return false
}

// FailureSeverity grades a failure record.
type FailureSeverity string

const (
	SeverityLow      FailureSeverity = "low"
	SeverityMedium   FailureSeverity = "medium"
	SeverityHigh     FailureSeverity = "high"
	SeverityCritical FailureSeverity = "critical"
)

// IsValid reports whether the severity is known.
func (s FailureSeverity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// FailureRecord classifies one failure observed during a trace. A trace may
// accumulate several.
type FailureRecord struct {
	ID                 string          `json:"id"`
	TraceID            string          `json:"trace_id"`
	TenantID           string          `json:"tenant_id,omitempty"`
	Category           FailureCategory `json:"category"`
	Severity           FailureSeverity `json:"severity"`
	Subcode            string          `json:"subcode"`
	Message            string          `json:"message"`
	Context            map[string]any  `json:"context,omitempty"`
	Retryable          bool            `json:"retryable"`
	EscalationRequired bool            `json:"escalation_required"`
	RecordedAt         time.Time       `json:"recorded_at"`
}
