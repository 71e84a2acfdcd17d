package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/praetorworks/praetor/pkg/governance"
	"github.com/praetorworks/praetor/pkg/tools"
)

// DispatchTool lets a coordinator agent fan work out to sub-agents
// through a Runner. Each call dispatches every listed task, waits for
// all of them, and returns a JSON summary of the results. Registered
// after the loop is built; the two-phase wiring breaks the loop→tool→
// runner→loop cycle.
type DispatchTool struct {
	runner *Runner
}

// NewDispatchTool wraps a runner as a registry tool.
func NewDispatchTool(runner *Runner) *DispatchTool {
	return &DispatchTool{runner: runner}
}

func (t *DispatchTool) Name() string { return "dispatch_agents" }

func (t *DispatchTool) Description() string {
	return "Dispatch tasks to other agents in parallel and wait for their results."
}

func (t *DispatchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tasks": map[string]any{
				"type":        "array",
				"description": "Sub-agent tasks to run concurrently",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"agent": map[string]any{
							"type":        "string",
							"description": "Registered agent name",
						},
						"task": map[string]any{
							"type":        "string",
							"description": "Task to hand the agent",
						},
						"inputs": map[string]any{
							"type":        "object",
							"description": "Structured inputs for the task",
						},
					},
					"required": []string{"agent", "task"},
				},
			},
		},
		"required": []string{"tasks"},
	}
}

type dispatchOutcome struct {
	Agent      string `json:"agent"`
	Task       string `json:"task"`
	Reason     string `json:"reason,omitempty"`
	FinalText  string `json:"final_text,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (t *DispatchTool) Execute(ctx context.Context, args map[string]any, inv tools.Invocation) tools.Result {
	rawTasks, ok := args["tasks"].([]any)
	if !ok || len(rawTasks) == 0 {
		return tools.Errorf("tasks must be a non-empty array")
	}

	caller := governance.CallerContext{TenantID: inv.TenantID}
	var errs []string
	dispatched := 0
	for i, raw := range rawTasks {
		task, ok := raw.(map[string]any)
		if !ok {
			return tools.Errorf("tasks[%d] must be an object", i)
		}
		agentName, _ := task["agent"].(string)
		taskText, _ := task["task"].(string)
		if agentName == "" || taskText == "" {
			return tools.Errorf("tasks[%d] needs both agent and task", i)
		}
		inputs, _ := task["inputs"].(map[string]any)

		if _, err := t.runner.Dispatch(agentName, taskText, inputs, caller); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", agentName, err))
			continue
		}
		dispatched++
	}
	if dispatched == 0 {
		return tools.Errorf("no tasks dispatched: %s", strings.Join(errs, "; "))
	}

	results := t.runner.WaitAll(ctx)
	outcomes := make([]dispatchOutcome, 0, len(results))
	for _, res := range results {
		outcome := dispatchOutcome{
			Agent:      res.AgentName,
			Task:       res.Task,
			Reason:     string(res.Result.Reason),
			FinalText:  res.Result.FinalText,
			Iterations: res.Result.Iterations,
		}
		if res.Err != nil {
			outcome.Error = res.Err.Error()
		}
		outcomes = append(outcomes, outcome)
	}

	summary, err := json.Marshal(map[string]any{
		"dispatched": dispatched,
		"failed":     errs,
		"results":    outcomes,
	})
	if err != nil {
		return tools.Errorf("failed to encode dispatch results: %v", err)
	}
	return tools.Result{Success: true, Content: string(summary)}
}
