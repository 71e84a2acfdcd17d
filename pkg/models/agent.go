package models

import (
	"fmt"
	"time"
)

// AgentRole identifies the function an agent performs in an orchestration.
type AgentRole string

const (
	RoleOrchestrator  AgentRole = "orchestrator"
	RoleDirector      AgentRole = "director"
	RoleImplementer   AgentRole = "implementer"
	RoleQA            AgentRole = "qa"
	RoleReviewer      AgentRole = "reviewer"
	RoleResearcher    AgentRole = "researcher"
	RoleDocumentation AgentRole = "documentation"
	RoleSecurity      AgentRole = "security"
	RoleArchitect     AgentRole = "architect"
	RoleTestEngineer  AgentRole = "test-engineer"
)

// legacyRoles maps retired role names to their current equivalents.
// Definitions using them are rewritten at load time.
var legacyRoles = map[AgentRole]AgentRole{
	"manager":   RoleDirector,
	"developer": RoleImplementer,
}

var validRoles = map[AgentRole]bool{
	RoleOrchestrator:  true,
	RoleDirector:      true,
	RoleImplementer:   true,
	RoleQA:            true,
	RoleReviewer:      true,
	RoleResearcher:    true,
	RoleDocumentation: true,
	RoleSecurity:      true,
	RoleArchitect:     true,
	RoleTestEngineer:  true,
}

// Normalize maps legacy role aliases onto current roles; unknown roles pass
// through unchanged so validation can report them.
func (r AgentRole) Normalize() AgentRole {
	if mapped, ok := legacyRoles[r]; ok {
		return mapped
	}
	return r
}

// IsValid reports whether the role (after normalization) is a known role.
func (r AgentRole) IsValid() bool {
	return validRoles[r.Normalize()]
}

// AutonomyLevel controls how much an agent may do without human review.
type AutonomyLevel string

const (
	AutonomyReadOnly   AutonomyLevel = "read-only"
	AutonomySupervised AutonomyLevel = "supervised"
	AutonomyAutonomous AutonomyLevel = "autonomous"
)

// IsValid reports whether the autonomy level is known.
func (l AutonomyLevel) IsValid() bool {
	switch l {
	case AutonomyReadOnly, AutonomySupervised, AutonomyAutonomous:
		return true
	}
	return false
}

// AgentLifecycle is the definition's publication status.
type AgentLifecycle string

const (
	AgentLifecycleDraft      AgentLifecycle = "draft"
	AgentLifecycleActive     AgentLifecycle = "active"
	AgentLifecycleDeprecated AgentLifecycle = "deprecated"
)

// AgentConstraints bounds a single agent execution.
type AgentConstraints struct {
	MaxTokens       int  `yaml:"max_tokens" json:"max_tokens"`
	TimeoutSeconds  int  `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxRetries      int  `yaml:"max_retries" json:"max_retries"`
	ParallelAllowed bool `yaml:"parallel_allowed" json:"parallel_allowed"`
}

// Validate checks the documented bounds on each constraint field.
func (c *AgentConstraints) Validate() error {
	if c.MaxTokens < 100 || c.MaxTokens > 200000 {
		return fmt.Errorf("max_tokens %d outside [100, 200000]", c.MaxTokens)
	}
	if c.TimeoutSeconds < 10 || c.TimeoutSeconds > 3600 {
		return fmt.Errorf("timeout_seconds %d outside [10, 3600]", c.TimeoutSeconds)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max_retries %d outside [0, 10]", c.MaxRetries)
	}
	return nil
}

// GovernanceConstraints narrows what the governance engine permits for this
// agent beyond the global defaults.
type GovernanceConstraints struct {
	Scopes           []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	AllowedCommands  []string `yaml:"allowed_commands,omitempty" json:"allowed_commands,omitempty"`
	AllowedPaths     []string `yaml:"allowed_paths,omitempty" json:"allowed_paths,omitempty"`
	AllowedDomains   []string `yaml:"allowed_domains,omitempty" json:"allowed_domains,omitempty"`
	NetworkEnabled   bool     `yaml:"network_enabled" json:"network_enabled"`
	ApprovalRequired []string `yaml:"approval_required,omitempty" json:"approval_required,omitempty"`
}

// Ownership names who answers for an agent and where escalations go.
type Ownership struct {
	Owner            string `yaml:"owner" json:"owner"`
	EscalationTarget string `yaml:"escalation_target,omitempty" json:"escalation_target,omitempty"`
}

// AgentDefinition is the versioned descriptor for a single agent. Registries
// hand out read-only references; callers never mutate a shared definition.
type AgentDefinition struct {
	Name         string                 `yaml:"name" json:"name"`
	Version      string                 `yaml:"version" json:"version"`
	Role         AgentRole              `yaml:"role" json:"role"`
	Description  string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Capabilities []string               `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	InputSchema  map[string]any         `yaml:"input_schema,omitempty" json:"input_schema,omitempty"`
	OutputSchema map[string]any         `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`
	DependsOn    []string               `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Prompts      PromptRefs             `yaml:"prompts,omitempty" json:"prompts,omitempty"`
	Skills       []string               `yaml:"skills,omitempty" json:"skills,omitempty"`
	Model        string                 `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature  *float64               `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	Tools        []string               `yaml:"tools,omitempty" json:"tools,omitempty"`
	Constraints  AgentConstraints       `yaml:"constraints" json:"constraints"`
	Autonomy     AutonomyLevel          `yaml:"autonomy" json:"autonomy"`
	Governance   *GovernanceConstraints `yaml:"governance,omitempty" json:"governance,omitempty"`
	Ownership    Ownership              `yaml:"ownership" json:"ownership"`
	Lifecycle    AgentLifecycle         `yaml:"lifecycle,omitempty" json:"lifecycle,omitempty"`
	TenantID     string                 `yaml:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	CreatedAt    time.Time              `yaml:"-" json:"created_at,omitempty"`
}

// PromptRefs points at the prompt templates an agent is built from.
type PromptRefs struct {
	System       string `yaml:"system,omitempty" json:"system,omitempty"`
	Instructions string `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// Validate checks structural validity; the registry rejects invalid
// definitions at load time.
func (d *AgentDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("agent definition missing name")
	}
	if d.Version == "" {
		return fmt.Errorf("agent %q: missing version", d.Name)
	}
	if !d.Role.IsValid() {
		return fmt.Errorf("agent %q: unknown role %q", d.Name, d.Role)
	}
	if !d.Autonomy.IsValid() {
		return fmt.Errorf("agent %q: unknown autonomy level %q", d.Name, d.Autonomy)
	}
	if err := d.Constraints.Validate(); err != nil {
		return fmt.Errorf("agent %q: %w", d.Name, err)
	}
	if d.Temperature != nil && (*d.Temperature < 0 || *d.Temperature > 2) {
		return fmt.Errorf("agent %q: temperature %v outside [0, 2]", d.Name, *d.Temperature)
	}
	return nil
}
