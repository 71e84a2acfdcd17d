package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/praetorworks/praetor/pkg/agent"
	"github.com/praetorworks/praetor/pkg/autonomy"
	"github.com/praetorworks/praetor/pkg/governance"
	"github.com/praetorworks/praetor/pkg/hooks"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
	"github.com/praetorworks/praetor/pkg/tools"
	"github.com/praetorworks/praetor/pkg/trace"
)

// HookRunner executes one hook chain for an event.
type HookRunner interface {
	Run(ctx context.Context, hc *hooks.HookContext)
}

// AgentService invokes agents through the reasoning loop, wrapping each
// invocation in the agent.invoke hook pair and resolving the autonomy
// budget that gates the run.
type AgentService struct {
	loop      *agent.Loop
	agents    *registry.AgentRegistry
	skills    *registry.SkillRegistry
	budgets   *autonomy.Manager
	preHooks  HookRunner
	postHooks HookRunner
	logger    *slog.Logger
}

// NewAgentService builds the service. preHooks and postHooks may be nil
// when no hook pipeline is wired.
func NewAgentService(loop *agent.Loop, agents *registry.AgentRegistry, skills *registry.SkillRegistry,
	budgets *autonomy.Manager, preHooks, postHooks HookRunner, logger *slog.Logger) *AgentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentService{
		loop:      loop,
		agents:    agents,
		skills:    skills,
		budgets:   budgets,
		preHooks:  preHooks,
		postHooks: postHooks,
		logger:    logger.With("component", "agent_service"),
	}
}

// InvokeRequest names an agent and the task to hand it.
type InvokeRequest struct {
	Agent     string         `json:"agent"`
	Task      string         `json:"task"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	TenantID  string         `json:"tenant_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	BudgetID  string         `json:"budget_id,omitempty"`
}

// Execute runs one agent invocation to termination.
func (s *AgentService) Execute(ctx context.Context, req InvokeRequest) (agent.Result, error) {
	if req.Agent == "" {
		return agent.Result{}, NewValidationError("agent", "required")
	}
	if req.Task == "" {
		return agent.Result{}, NewValidationError("task", "required")
	}

	def, err := s.agents.Get(req.Agent)
	if err != nil {
		return agent.Result{}, fmt.Errorf("%w: agent %q", ErrNotFound, req.Agent)
	}

	if s.preHooks != nil {
		hc := hooks.NewHookContext(hooks.EventAgentInvokePre, req.TenantID, map[string]any{
			hooks.DataAgent: def.Name,
			"task":          req.Task,
		})
		s.preHooks.Run(ctx, hc)
		if aborted, reason := hc.Aborted(); aborted {
			return agent.Result{}, &DeniedError{Reason: reason}
		}
	}

	budget, enforcement, err := s.resolveBudget(req, def)
	if err != nil {
		return agent.Result{}, err
	}

	result, err := s.loop.Run(ctx, agent.RunInput{
		Agent:       def,
		Task:        req.Task,
		Inputs:      req.Inputs,
		TaskID:      req.TaskID,
		SessionID:   req.SessionID,
		RunID:       req.RunID,
		Caller:      callerContext(def, req.TenantID),
		Invocation:  tools.Invocation{TenantID: req.TenantID, AgentID: def.Name},
		Budget:      budget,
		Enforcement: enforcement,
		Skills:      s.skills,
	})
	if err != nil {
		return result, err
	}

	if s.postHooks != nil {
		hc := hooks.NewHookContext(hooks.EventAgentInvokePost, req.TenantID, map[string]any{
			hooks.DataAgent: def.Name,
			"reason":        string(result.Reason),
			"iterations":    result.Iterations,
			"trace_id":      result.TraceID,
		})
		s.postHooks.Run(ctx, hc)
	}
	return result, nil
}

// Invoke satisfies the workflow engine's agent adapter: run the agent
// and return its final text, or an error when the run did not finish
// usefully.
func (s *AgentService) Invoke(ctx context.Context, agentName, task string, inputs map[string]any) (string, error) {
	tenantID, _ := inputs["tenant_id"].(string)
	result, err := s.Execute(ctx, InvokeRequest{
		Agent:    agentName,
		Task:     task,
		Inputs:   inputs,
		TenantID: tenantID,
	})
	if err != nil {
		return "", err
	}
	if trace.IsFailure(result.Reason) {
		return "", fmt.Errorf("agent %s terminated: %s", agentName, result.Reason)
	}
	return result.FinalText, nil
}

// resolveBudget attaches the requested budget, or the agent's active
// budget when none is named. Agents without a budget run ungated.
func (s *AgentService) resolveBudget(req InvokeRequest, def *models.AgentDefinition) (*models.AutonomyBudget, *models.EnforcementContext, error) {
	if s.budgets == nil {
		return nil, nil, nil
	}
	if req.BudgetID != "" {
		budget, err := s.budgets.Get(req.BudgetID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: budget %q", ErrNotFound, req.BudgetID)
		}
		ec, err := s.budgets.Attach(req.BudgetID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to attach budget %q: %w", req.BudgetID, err)
		}
		return &budget, ec, nil
	}

	for _, budget := range s.budgets.List(req.TenantID) {
		if budget.AgentName != def.Name || budget.State != models.BudgetActive {
			continue
		}
		ec, err := s.budgets.Attach(budget.ID)
		if err != nil {
			if errors.Is(err, autonomy.ErrBudgetNotActive) {
				continue
			}
			return nil, nil, fmt.Errorf("failed to attach budget %q: %w", budget.ID, err)
		}
		return &budget, ec, nil
	}
	return nil, nil, nil
}

// callerContext derives the governance caller from the definition's
// constraints.
func callerContext(def *models.AgentDefinition, tenantID string) governance.CallerContext {
	caller := governance.CallerContext{TenantID: tenantID}
	if def.Governance != nil {
		caller.Scopes = def.Governance.Scopes
		caller.CommandAllowlist = def.Governance.AllowedCommands
		caller.PathAllowlist = def.Governance.AllowedPaths
		caller.DomainAllowlist = def.Governance.AllowedDomains
	}
	return caller
}
