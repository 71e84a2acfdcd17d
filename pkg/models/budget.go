package models

import (
	"fmt"
	"sync"
	"time"
)

// BudgetState is one node of the budget lifecycle graph.
type BudgetState string

const (
	BudgetDraft           BudgetState = "draft"
	BudgetPendingApproval BudgetState = "pending_approval"
	BudgetActive          BudgetState = "active"
	BudgetSuspended       BudgetState = "suspended"
	BudgetRejected        BudgetState = "rejected"
	BudgetExpired         BudgetState = "expired"
	BudgetCompleted       BudgetState = "completed"
)

// IsTerminal reports whether no transition leaves the state.
func (s BudgetState) IsTerminal() bool {
	return s == BudgetExpired || s == BudgetCompleted
}

// StopAction says what the enforcer does when a stop condition fires.
type StopAction string

const (
	StopActionStop     StopAction = "stop"
	StopActionEscalate StopAction = "escalate"
	StopActionWarn     StopAction = "warn"
)

// IsValid reports whether the action is known.
func (a StopAction) IsValid() bool {
	switch a {
	case StopActionStop, StopActionEscalate, StopActionWarn:
		return true
	}
	return false
}

// EscalationUrgency grades how fast an escalation must be handled.
type EscalationUrgency string

const (
	UrgencyImmediate EscalationUrgency = "immediate"
	UrgencyNormal    EscalationUrgency = "normal"
	UrgencyLow       EscalationUrgency = "low"
)

// IsValid reports whether the urgency is known.
func (u EscalationUrgency) IsValid() bool {
	switch u {
	case UrgencyImmediate, UrgencyNormal, UrgencyLow:
		return true
	}
	return false
}

// ScopeSpec declares what work is inside and outside a budget.
type ScopeSpec struct {
	InScope    []string `yaml:"in_scope,omitempty" json:"in_scope,omitempty"`
	OutOfScope []string `yaml:"out_of_scope,omitempty" json:"out_of_scope,omitempty"`
}

// FilePermissions declares which paths an agent may touch, as glob patterns.
type FilePermissions struct {
	ReadGlobs  []string `yaml:"read,omitempty" json:"read,omitempty"`
	WriteGlobs []string `yaml:"write,omitempty" json:"write,omitempty"`
	DenyGlobs  []string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// CommandPermission allowlists one executable, optionally constraining its
// arguments and capping invocations.
type CommandPermission struct {
	Executable string `yaml:"executable" json:"executable"`
	ArgsRegex  string `yaml:"args_regex,omitempty" json:"args_regex,omitempty"`
	MaxCalls   int    `yaml:"max_calls,omitempty" json:"max_calls,omitempty"`
}

// NetworkScope declares whether and where the agent may reach the network.
type NetworkScope struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedDomains []string `yaml:"allowed_domains,omitempty" json:"allowed_domains,omitempty"`
	DeniedDomains  []string `yaml:"denied_domains,omitempty" json:"denied_domains,omitempty"`
	MaxRequests    int      `yaml:"max_requests,omitempty" json:"max_requests,omitempty"`
}

// ResourceLimits caps aggregate consumption across an execution.
type ResourceLimits struct {
	MaxIterations      int `yaml:"max_iterations" json:"max_iterations"`
	MaxDurationMinutes int `yaml:"max_duration_minutes" json:"max_duration_minutes"`
	MaxFilesModified   int `yaml:"max_files_modified,omitempty" json:"max_files_modified,omitempty"`
	MaxLinesChanged    int `yaml:"max_lines_changed,omitempty" json:"max_lines_changed,omitempty"`
	MaxToolCalls       int `yaml:"max_tool_calls,omitempty" json:"max_tool_calls,omitempty"`
}

// StopCondition pairs a trigger description with the enforcement action.
type StopCondition struct {
	Description string     `yaml:"description" json:"description"`
	Action      StopAction `yaml:"action" json:"action"`
}

// EscalationTrigger routes a condition to a human target.
type EscalationTrigger struct {
	Description string            `yaml:"description" json:"description"`
	Target      string            `yaml:"target" json:"target"`
	Urgency     EscalationUrgency `yaml:"urgency" json:"urgency"`
}

// AutonomyBudget is the approvable envelope an autonomous execution runs
// inside. Owned by the autonomy service; callers receive copies or read-only
// references.
type AutonomyBudget struct {
	ID                string              `yaml:"id,omitempty" json:"id"`
	Name              string              `yaml:"name" json:"name"`
	TenantID          string              `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	AgentName         string              `yaml:"agent,omitempty" json:"agent,omitempty"`
	State             BudgetState         `yaml:"state,omitempty" json:"state"`
	Scope             ScopeSpec           `yaml:"scope" json:"scope"`
	Files             FilePermissions     `yaml:"files,omitempty" json:"files,omitempty"`
	Commands          []CommandPermission `yaml:"commands,omitempty" json:"commands,omitempty"`
	Network           NetworkScope        `yaml:"network,omitempty" json:"network,omitempty"`
	Limits            ResourceLimits      `yaml:"limits" json:"limits"`
	StopConditions    []StopCondition     `yaml:"stop_conditions,omitempty" json:"stop_conditions,omitempty"`
	Escalations       []EscalationTrigger `yaml:"escalations,omitempty" json:"escalations,omitempty"`
	DefaultEscalation string              `yaml:"default_escalation,omitempty" json:"default_escalation,omitempty"`
	ExpiresAt         *time.Time          `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt         time.Time           `yaml:"-" json:"created_at,omitempty"`
	UpdatedAt         time.Time           `yaml:"-" json:"updated_at,omitempty"`
}

// Expired reports whether the budget's expiry has passed at now.
func (b *AutonomyBudget) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// Validate checks structural validity of the declared envelope.
func (b *AutonomyBudget) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("budget missing name")
	}
	for _, sc := range b.StopConditions {
		if !sc.Action.IsValid() {
			return fmt.Errorf("budget %q: unknown stop action %q", b.Name, sc.Action)
		}
	}
	for _, et := range b.Escalations {
		if !et.Urgency.IsValid() {
			return fmt.Errorf("budget %q: unknown urgency %q", b.Name, et.Urgency)
		}
		if et.Target == "" {
			return fmt.Errorf("budget %q: escalation trigger missing target", b.Name)
		}
	}
	for _, cp := range b.Commands {
		if cp.Executable == "" {
			return fmt.Errorf("budget %q: command permission missing executable", b.Name)
		}
	}
	return nil
}

// EnforcementContext tracks live consumption against an active budget.
// Counter updates go through the methods so concurrent tool executions
// observe consistent values.
type EnforcementContext struct {
	mu sync.Mutex

	BudgetID        string    `json:"budget_id"`
	StartedAt       time.Time `json:"started_at"`
	Iterations      int       `json:"iterations"`
	ToolCalls       int       `json:"tool_calls"`
	FilesModified   int       `json:"files_modified"`
	LinesChanged    int       `json:"lines_changed"`
	NetworkRequests int       `json:"network_requests"`
	Warnings        []string  `json:"warnings,omitempty"`
	Violations      []string  `json:"violations,omitempty"`
	Stopped         bool      `json:"stopped"`
	StopReason      string    `json:"stop_reason,omitempty"`
}

// NewEnforcementContext returns a zeroed context for the given budget.
func NewEnforcementContext(budgetID string, now time.Time) *EnforcementContext {
	return &EnforcementContext{BudgetID: budgetID, StartedAt: now}
}

// RecordIteration increments the iteration counter.
func (e *EnforcementContext) RecordIteration() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Iterations++
}

// RecordToolCall increments the tool-call counter.
func (e *EnforcementContext) RecordToolCall() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ToolCalls++
}

// RecordFileModified increments the file counter and adds the lines changed.
func (e *EnforcementContext) RecordFileModified(lines int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.FilesModified++
	e.LinesChanged += lines
}

// RecordNetworkRequest increments the network counter.
func (e *EnforcementContext) RecordNetworkRequest() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NetworkRequests++
}

// AddWarning appends a warning without stopping the execution.
func (e *EnforcementContext) AddWarning(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Warnings = append(e.Warnings, msg)
}

// AddViolation appends a violation record.
func (e *EnforcementContext) AddViolation(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Violations = append(e.Violations, msg)
}

// Stop marks the context stopped with a reason; later calls keep the first
// reason.
func (e *EnforcementContext) Stop(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.Stopped {
		e.Stopped = true
		e.StopReason = reason
	}
}

// IsStopped reports whether enforcement halted the execution.
func (e *EnforcementContext) IsStopped() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Stopped, e.StopReason
}

// Snapshot returns a copy of the counters for reporting.
func (e *EnforcementContext) Snapshot() EnforcementSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EnforcementSnapshot{
		BudgetID:        e.BudgetID,
		StartedAt:       e.StartedAt,
		Iterations:      e.Iterations,
		ToolCalls:       e.ToolCalls,
		FilesModified:   e.FilesModified,
		LinesChanged:    e.LinesChanged,
		NetworkRequests: e.NetworkRequests,
		Warnings:        append([]string(nil), e.Warnings...),
		Violations:      append([]string(nil), e.Violations...),
		Stopped:         e.Stopped,
		StopReason:      e.StopReason,
	}
}

// EnforcementSnapshot is a point-in-time copy of an EnforcementContext.
type EnforcementSnapshot struct {
	BudgetID        string    `json:"budget_id"`
	StartedAt       time.Time `json:"started_at"`
	Iterations      int       `json:"iterations"`
	ToolCalls       int       `json:"tool_calls"`
	FilesModified   int       `json:"files_modified"`
	LinesChanged    int       `json:"lines_changed"`
	NetworkRequests int       `json:"network_requests"`
	Warnings        []string  `json:"warnings,omitempty"`
	Violations      []string  `json:"violations,omitempty"`
	Stopped         bool      `json:"stopped"`
	StopReason      string    `json:"stop_reason,omitempty"`
}

// Escalation is the record produced when an escalate stop condition fires.
type Escalation struct {
	ID         string            `json:"id"`
	BudgetID   string            `json:"budget_id"`
	Trigger    string            `json:"trigger"`
	Target     string            `json:"target"`
	Urgency    EscalationUrgency `json:"urgency"`
	RecordedAt time.Time         `json:"recorded_at"`
}
