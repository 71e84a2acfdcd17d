package config

import (
	"fmt"

	"github.com/praetorworks/praetor/pkg/mcp"
	"github.com/praetorworks/praetor/pkg/models"
)

// validate checks every loaded definition and the cross-references
// between them. The first failure is returned with component context.
func validate(cfg *Config) error {
	agentNames := make(map[string]bool, len(cfg.Agents))
	for i := range cfg.Agents {
		def := &cfg.Agents[i]
		if err := def.Validate(); err != nil {
			return &ValidationError{Component: "agent", ID: def.Name, Err: err}
		}
		if agentNames[def.Name] {
			return &ValidationError{Component: "agent", ID: def.Name,
				Err: fmt.Errorf("%w: duplicate agent name", ErrInvalidValue)}
		}
		agentNames[def.Name] = true
	}

	skillNames := make(map[string]bool, len(cfg.Skills))
	for i := range cfg.Skills {
		skill := &cfg.Skills[i]
		if err := skill.Validate(); err != nil {
			return &ValidationError{Component: "skill", ID: skill.Name, Err: err}
		}
		skillNames[skill.Name] = true
	}

	// Agent skill references must resolve.
	for i := range cfg.Agents {
		def := &cfg.Agents[i]
		for _, name := range def.Skills {
			if !skillNames[name] {
				return &ValidationError{Component: "agent", ID: def.Name, Field: "skills",
					Err: fmt.Errorf("%w: unknown skill %q", ErrInvalidReference, name)}
			}
		}
	}

	for i := range cfg.Workflows {
		def := &cfg.Workflows[i]
		if err := def.Validate(); err != nil {
			return &ValidationError{Component: "workflow", ID: def.Name, Err: err}
		}
		if err := validateWorkflowAgents(def.Steps, agentNames); err != nil {
			return &ValidationError{Component: "workflow", ID: def.Name, Err: err}
		}
	}

	for i := range cfg.Budgets {
		budget := &cfg.Budgets[i]
		if err := budget.Validate(); err != nil {
			return &ValidationError{Component: "budget", ID: budget.Name, Err: err}
		}
		if budget.AgentName != "" && !agentNames[budget.AgentName] {
			return &ValidationError{Component: "budget", ID: budget.Name, Field: "agent",
				Err: fmt.Errorf("%w: unknown agent %q", ErrInvalidReference, budget.AgentName)}
		}
	}

	for i := range cfg.MCPServers {
		if err := validateMCPServer(&cfg.MCPServers[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateWorkflowAgents walks steps (including conditional branches
// and parallel groups) and checks invoke-agent targets exist.
func validateWorkflowAgents(steps []models.WorkflowStep, agents map[string]bool) error {
	for i := range steps {
		step := &steps[i]
		if step.Action == models.ActionInvokeAgent && step.Agent != "" && !agents[step.Agent] {
			return fmt.Errorf("step %q: %w: unknown agent %q",
				step.ID, ErrInvalidReference, step.Agent)
		}
		for _, nested := range [][]models.WorkflowStep{step.Then, step.Else, step.Steps} {
			if err := validateWorkflowAgents(nested, agents); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateMCPServer(server *mcp.ServerConfig) error {
	switch server.Transport {
	case mcp.TransportStdio:
		if server.Command == "" {
			return &ValidationError{Component: "mcp_server", ID: server.ID, Field: "command",
				Err: fmt.Errorf("%w: stdio transport requires a command", ErrInvalidValue)}
		}
	case mcp.TransportHTTP:
		if server.URL == "" {
			return &ValidationError{Component: "mcp_server", ID: server.ID, Field: "url",
				Err: fmt.Errorf("%w: http transport requires a url", ErrInvalidValue)}
		}
	default:
		return &ValidationError{Component: "mcp_server", ID: server.ID, Field: "transport",
			Err: fmt.Errorf("%w: unknown transport %q", ErrInvalidValue, server.Transport)}
	}
	return nil
}
