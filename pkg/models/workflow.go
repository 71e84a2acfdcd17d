package models

import (
	"fmt"
	"regexp"
	"time"
)

// TriggerType says what starts a workflow run.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerOnChange TriggerType = "on-change"
	TriggerSchedule TriggerType = "schedule"
	TriggerOnEvent  TriggerType = "on-event"
)

// IsValid reports whether the trigger type is known.
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerManual, TriggerOnChange, TriggerSchedule, TriggerOnEvent:
		return true
	}
	return false
}

// WorkflowTrigger binds a trigger type to its parameters. Schedule triggers
// carry a cron expression; event triggers carry the event name.
type WorkflowTrigger struct {
	Type     TriggerType `yaml:"type" json:"type"`
	Schedule string      `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Event    string      `yaml:"event,omitempty" json:"event,omitempty"`
	Paths    []string    `yaml:"paths,omitempty" json:"paths,omitempty"`
}

// StepAction selects the adapter a workflow step dispatches to.
type StepAction string

const (
	ActionInvokeAgent   StepAction = "invoke-agent"
	ActionRunCommand    StepAction = "run-command"
	ActionValidate      StepAction = "validate"
	ActionTransform     StepAction = "transform"
	ActionConditional   StepAction = "conditional"
	ActionParallelGroup StepAction = "parallel-group"
	ActionWait          StepAction = "wait"
	ActionExecuteCode   StepAction = "execute-code"
	ActionHTTPRequest   StepAction = "http-request"
)

// IsValid reports whether the action is known.
func (a StepAction) IsValid() bool {
	switch a {
	case ActionInvokeAgent, ActionRunCommand, ActionValidate, ActionTransform,
		ActionConditional, ActionParallelGroup, ActionWait, ActionExecuteCode,
		ActionHTTPRequest:
		return true
	}
	return false
}

// RetryConfig bounds per-step retry behavior.
type RetryConfig struct {
	MaxAttempts  int `yaml:"max_attempts" json:"max_attempts"`
	DelaySeconds int `yaml:"delay_seconds" json:"delay_seconds"`
}

// Validate checks the documented retry bounds.
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 1 || r.MaxAttempts > 10 {
		return fmt.Errorf("retry max_attempts %d outside [1, 10]", r.MaxAttempts)
	}
	if r.DelaySeconds < 1 {
		return fmt.Errorf("retry delay_seconds %d below 1", r.DelaySeconds)
	}
	return nil
}

var stepIDPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// WorkflowStep is one node of a workflow DAG.
type WorkflowStep struct {
	ID             string         `yaml:"id" json:"id"`
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Action         StepAction     `yaml:"action" json:"action"`
	Agent          string         `yaml:"agent,omitempty" json:"agent,omitempty"`
	Command        string         `yaml:"command,omitempty" json:"command,omitempty"`
	Inputs         map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs        []string       `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	DependsOn      []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Retry          *RetryConfig   `yaml:"retry,omitempty" json:"retry,omitempty"`
	TimeoutSeconds int            `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`

	// Action-specific bindings.
	Condition string         `yaml:"condition,omitempty" json:"condition,omitempty"`
	Then      []WorkflowStep `yaml:"then,omitempty" json:"then,omitempty"`
	Else      []WorkflowStep `yaml:"else,omitempty" json:"else,omitempty"`
	Steps     []WorkflowStep `yaml:"steps,omitempty" json:"steps,omitempty"`
	Duration  string         `yaml:"duration,omitempty" json:"duration,omitempty"`
	WaitFor   string         `yaml:"wait_for,omitempty" json:"wait_for,omitempty"`
	ToolID    string         `yaml:"tool_id,omitempty" json:"tool_id,omitempty"`
	AdapterID string         `yaml:"adapter_id,omitempty" json:"adapter_id,omitempty"`
	Sandbox   *SandboxSpec   `yaml:"sandbox,omitempty" json:"sandbox,omitempty"`
}

// SandboxSpec caps an execute-code step.
type SandboxSpec struct {
	TimeoutMs   int   `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	MemoryBytes int64 `yaml:"memory_bytes,omitempty" json:"memory_bytes,omitempty"`
	CPUQuota    int64 `yaml:"cpu_quota,omitempty" json:"cpu_quota,omitempty"`
	NetworkOff  bool  `yaml:"network_off,omitempty" json:"network_off,omitempty"`
}

// Validate checks a single step in isolation. Cross-step checks (duplicate
// IDs, dangling dependencies) belong to WorkflowDefinition.Validate.
func (s *WorkflowStep) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("step missing id")
	}
	if !stepIDPattern.MatchString(s.ID) {
		return fmt.Errorf("step %q: id must be a lowercase slug", s.ID)
	}
	if !s.Action.IsValid() {
		return fmt.Errorf("step %q: unknown action %q", s.ID, s.Action)
	}
	if s.Action == ActionInvokeAgent && s.Agent == "" {
		return fmt.Errorf("step %q: invoke-agent requires agent", s.ID)
	}
	if s.Action == ActionRunCommand && s.Command == "" {
		return fmt.Errorf("step %q: run-command requires command", s.ID)
	}
	if s.Action == ActionExecuteCode && s.ToolID == "" {
		return fmt.Errorf("step %q: execute-code requires tool_id", s.ID)
	}
	if s.Action == ActionWait && s.Duration == "" && s.WaitFor == "" {
		return fmt.Errorf("step %q: wait requires duration or wait_for", s.ID)
	}
	if s.Duration != "" {
		if _, err := time.ParseDuration(s.Duration); err != nil {
			return fmt.Errorf("step %q: bad duration: %w", s.ID, err)
		}
	}
	if s.TimeoutSeconds != 0 && s.TimeoutSeconds < 10 {
		return fmt.Errorf("step %q: timeout_seconds %d below 10", s.ID, s.TimeoutSeconds)
	}
	if s.Retry != nil {
		if err := s.Retry.Validate(); err != nil {
			return fmt.Errorf("step %q: %w", s.ID, err)
		}
	}
	for i := range s.Then {
		if err := s.Then[i].Validate(); err != nil {
			return err
		}
	}
	for i := range s.Else {
		if err := s.Else[i].Validate(); err != nil {
			return err
		}
	}
	for i := range s.Steps {
		if err := s.Steps[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ExecutionMode selects how the runner orders steps.
type ExecutionMode string

const (
	ModeSequential      ExecutionMode = "sequential"
	ModeParallel        ExecutionMode = "parallel"
	ModeDependencyAware ExecutionMode = "dependency-aware"
)

// IsValid reports whether the execution mode is known.
func (m ExecutionMode) IsValid() bool {
	switch m {
	case ModeSequential, ModeParallel, ModeDependencyAware:
		return true
	}
	return false
}

// ExecutionConfig tunes a whole workflow run.
type ExecutionConfig struct {
	Mode            ExecutionMode `yaml:"mode" json:"mode"`
	ParallelLimit   int           `yaml:"parallel_limit" json:"parallel_limit"`
	ContinueOnError bool          `yaml:"continue_on_error" json:"continue_on_error"`
	FailFast        bool          `yaml:"fail_fast" json:"fail_fast"`
	TimeoutSeconds  int           `yaml:"timeout_seconds" json:"timeout_seconds"`
	DryRun          bool          `yaml:"dry_run" json:"dry_run"`
}

// Validate checks the documented execution bounds.
func (c *ExecutionConfig) Validate() error {
	if !c.Mode.IsValid() {
		return fmt.Errorf("unknown execution mode %q", c.Mode)
	}
	if c.ParallelLimit < 1 || c.ParallelLimit > 32 {
		return fmt.Errorf("parallel_limit %d outside [1, 32]", c.ParallelLimit)
	}
	if c.TimeoutSeconds < 60 || c.TimeoutSeconds > 86400 {
		return fmt.Errorf("timeout_seconds %d outside [60, 86400]", c.TimeoutSeconds)
	}
	return nil
}

var semverPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

// WorkflowDefinition describes a versioned workflow: its triggers, parameter
// schemas, steps, and execution config.
type WorkflowDefinition struct {
	Name         string            `yaml:"name" json:"name"`
	Version      string            `yaml:"version" json:"version"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Triggers     []WorkflowTrigger `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	InputSchema  map[string]any    `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`
	OutputSchema map[string]any    `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`
	Steps        []WorkflowStep    `yaml:"steps" json:"steps"`
	Execution    ExecutionConfig   `yaml:"execution" json:"execution"`
	TenantID     string            `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	CreatedAt    time.Time         `yaml:"-" json:"created_at,omitempty"`
}

// Validate checks the workflow as a whole: step validity, unique step IDs,
// and that every depends_on target exists in the same workflow.
func (w *WorkflowDefinition) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow definition missing name")
	}
	if !semverPattern.MatchString(w.Version) {
		return fmt.Errorf("workflow %q: version %q is not semver", w.Name, w.Version)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q: no steps", w.Name)
	}
	if err := w.Execution.Validate(); err != nil {
		return fmt.Errorf("workflow %q: %w", w.Name, err)
	}
	for i := range w.Triggers {
		if !w.Triggers[i].Type.IsValid() {
			return fmt.Errorf("workflow %q: unknown trigger type %q", w.Name, w.Triggers[i].Type)
		}
		if w.Triggers[i].Type == TriggerSchedule && w.Triggers[i].Schedule == "" {
			return fmt.Errorf("workflow %q: schedule trigger missing cron expression", w.Name)
		}
	}
	seen := make(map[string]bool, len(w.Steps))
	for i := range w.Steps {
		if err := w.Steps[i].Validate(); err != nil {
			return fmt.Errorf("workflow %q: %w", w.Name, err)
		}
		if seen[w.Steps[i].ID] {
			return fmt.Errorf("workflow %q: duplicate step id %q", w.Name, w.Steps[i].ID)
		}
		seen[w.Steps[i].ID] = true
	}
	for i := range w.Steps {
		for _, dep := range w.Steps[i].DependsOn {
			if !seen[dep] {
				return fmt.Errorf("workflow %q: step %q depends on unknown step %q", w.Name, w.Steps[i].ID, dep)
			}
		}
	}
	return nil
}
