package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/hooks"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/tools"
)

// StepStatus is the execution state of one step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// ErrInputValidation means the run's inputs failed the workflow's input
// schema; nothing executed.
var ErrInputValidation = errors.New("workflow input validation failed")

// StepResult is the outcome of one step, including retries.
type StepResult struct {
	StepID     string         `json:"step_id"`
	Status     StepStatus     `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	Attempts   int            `json:"attempts"`
	DurationMs int64          `json:"duration_ms"`
}

// RunResult aggregates one workflow run.
type RunResult struct {
	RunID      string                `json:"run_id"`
	Workflow   string                `json:"workflow"`
	Status     StepStatus            `json:"status"`
	Steps      map[string]StepResult `json:"steps"`
	Outputs    map[string]any        `json:"outputs,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	DurationMs int64                 `json:"duration_ms"`
}

// HookRunner fires one hook event; the sequential and concurrent runners
// both satisfy it.
type HookRunner interface {
	Run(ctx context.Context, hc *hooks.HookContext)
}

// Runner executes workflow definitions layer by layer.
type Runner struct {
	adapters  *Adapters
	preHooks  HookRunner
	postHooks HookRunner
	bus       *events.Bus
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRunner builds a workflow runner. Hook runners and bus may be nil.
func NewRunner(adapters *Adapters, preHooks, postHooks HookRunner, bus *events.Bus, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		adapters:  adapters,
		preHooks:  preHooks,
		postHooks: postHooks,
		bus:       bus,
		logger:    logger.With("component", "workflow_runner"),
		sleep:     sleepCtx,
	}
}

// SetSleep overrides the retry delay for tests.
func (r *Runner) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	r.sleep = sleep
}

// runState is the shared mutable state of one run.
type runState struct {
	mu      sync.Mutex
	results map[string]StepResult
	outputs map[string]any
	failed  map[string]bool
}

func (s *runState) setResult(res StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.StepID] = res
	switch res.Status {
	case StepSuccess:
		s.outputs[res.StepID] = res.Outputs
	case StepFailed, StepSkipped:
		s.failed[res.StepID] = true
	}
}

func (s *runState) depFailed(deps []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range deps {
		if s.failed[dep] {
			return true
		}
	}
	return false
}

func (s *runState) output(stepID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[stepID].(map[string]any)
	return out, ok
}

// Execute runs the workflow to completion. The returned error is non-nil
// for run-level problems (bad inputs, cycle); step failures surface in
// the result with overall status failed.
func (r *Runner) Execute(ctx context.Context, def *models.WorkflowDefinition, inputs map[string]any) (RunResult, error) {
	if def.InputSchema != nil {
		validator, err := tools.CompileSchema(def.InputSchema)
		if err != nil {
			return RunResult{}, fmt.Errorf("workflow %q: compile input schema: %w", def.Name, err)
		}
		if err := validator.Validate(inputs); err != nil {
			return RunResult{}, fmt.Errorf("%w: %v", ErrInputValidation, err)
		}
	}

	dag := NewDAG(def.Steps)
	layers, err := r.planLayers(dag, def.Execution.Mode)
	if err != nil {
		return RunResult{}, fmt.Errorf("workflow %q: %w", def.Name, err)
	}

	if def.Execution.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(def.Execution.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	runID := uuid.NewString()
	started := time.Now()
	state := &runState{
		results: make(map[string]StepResult, len(def.Steps)),
		outputs: make(map[string]any, len(def.Steps)),
		failed:  make(map[string]bool),
	}
	r.publish(events.EventTypeRunStarted, def.TenantID, runID, map[string]any{
		"workflow": def.Name,
		"run_id":   runID,
	})

	runErr := r.runLayers(ctx, def, dag, layers, inputs, state, runID)

	result := RunResult{
		RunID:      runID,
		Workflow:   def.Name,
		Status:     StepSuccess,
		Steps:      state.results,
		Outputs:    state.outputs,
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
	}
	for _, res := range state.results {
		if res.Status == StepFailed {
			result.Status = StepFailed
			break
		}
	}
	if runErr != nil && result.Status != StepFailed {
		result.Status = StepFailed
	}
	r.publish(events.EventTypeRunCompleted, def.TenantID, runID, map[string]any{
		"workflow": def.Name,
		"run_id":   runID,
		"status":   string(result.Status),
	})
	r.logger.Info("workflow run finished",
		"workflow", def.Name, "run_id", runID,
		"status", string(result.Status), "steps", len(state.results))
	return result, nil
}

// planLayers maps the execution mode onto layers: sequential runs the
// topological order one step at a time; the other modes run
// dependency-satisfied layers with bounded parallelism.
func (r *Runner) planLayers(dag *DAG, mode models.ExecutionMode) ([][]string, error) {
	if mode == models.ModeSequential {
		order, err := dag.TopologicalOrder()
		if err != nil {
			return nil, err
		}
		layers := make([][]string, len(order))
		for i, id := range order {
			layers[i] = []string{id}
		}
		return layers, nil
	}
	return dag.ParallelGroups()
}

func (r *Runner) runLayers(ctx context.Context, def *models.WorkflowDefinition, dag *DAG, layers [][]string, inputs map[string]any, state *runState, runID string) error {
	limit := def.Execution.ParallelLimit
	if limit <= 0 {
		limit = 1
	}
	for _, layer := range layers {
		g, layerCtx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, stepID := range layer {
			step, _ := dag.Step(stepID)
			g.Go(func() error {
				res := r.runStep(layerCtx, def, step, inputs, state, runID)
				state.setResult(res)
				r.publish(events.EventTypeRunStep, def.TenantID, runID, map[string]any{
					"workflow": def.Name,
					"run_id":   runID,
					"step_id":  res.StepID,
					"status":   string(res.Status),
				})
				if res.Status == StepFailed && def.Execution.FailFast {
					return fmt.Errorf("step %q failed: %s", res.StepID, res.Error)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !def.Execution.ContinueOnError && state.anyFailed() {
			return nil
		}
	}
	return nil
}

func (s *runState) anyFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.results {
		if res.Status == StepFailed {
			return true
		}
	}
	return false
}

// runStep resolves inputs, fires the step hooks, and drives the retry
// loop around one step.
func (r *Runner) runStep(ctx context.Context, def *models.WorkflowDefinition, step *models.WorkflowStep, inputs map[string]any, state *runState, runID string) StepResult {
	started := time.Now()
	res := StepResult{StepID: step.ID, Status: StepRunning}

	if state.depFailed(step.DependsOn) {
		res.Status = StepSkipped
		res.Error = "skipped: upstream step failed"
		return res
	}

	data := r.resolveInputs(step, inputs, state)

	if r.preHooks != nil {
		hc := hooks.NewHookContext(hooks.EventWorkflowStepPre, def.TenantID, map[string]any{
			hooks.DataStep: step.ID,
			"workflow":     def.Name,
			"run_id":       runID,
		})
		r.preHooks.Run(ctx, hc)
		if aborted, reason := hc.Aborted(); aborted {
			res.Status = StepFailed
			res.Error = "aborted by hook: " + reason
			res.DurationMs = time.Since(started).Milliseconds()
			return res
		}
	}

	attempts := 1
	delay := time.Duration(0)
	if step.Retry != nil {
		attempts = step.Retry.MaxAttempts
		delay = time.Duration(step.Retry.DelaySeconds) * time.Second
	}

	var outputs map[string]any
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		outputs, err = r.dispatch(ctx, def, step, data, state, runID)
		if err == nil {
			break
		}
		r.logger.Warn("workflow step attempt failed",
			"workflow", def.Name, "step", step.ID,
			"attempt", attempt, "of", attempts, "error", err)
		if attempt < attempts {
			if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
				err = sleepErr
				break
			}
		}
	}

	res.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		res.Status = StepFailed
		res.Error = err.Error()
	} else {
		res.Status = StepSuccess
		res.Outputs = outputs
	}

	if r.postHooks != nil {
		hc := hooks.NewHookContext(hooks.EventWorkflowStepPost, def.TenantID, map[string]any{
			hooks.DataStep:       step.ID,
			"workflow":           def.Name,
			"run_id":             runID,
			"status":             string(res.Status),
			hooks.DataDurationMS: res.DurationMs,
		})
		r.postHooks.Run(ctx, hc)
	}
	return res
}

// dispatch handles structural actions in-place and leaf actions through
// the adapter set.
func (r *Runner) dispatch(ctx context.Context, def *models.WorkflowDefinition, step *models.WorkflowStep, data map[string]any, state *runState, runID string) (map[string]any, error) {
	if step.TimeoutSeconds > 0 && step.Action != models.ActionWait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(step.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	switch step.Action {
	case models.ActionConditional:
		branch := step.Then
		if !evalCondition(step.Condition, data) {
			branch = step.Else
		}
		return r.runSubSteps(ctx, def, branch, data, state, runID, false)
	case models.ActionParallelGroup:
		return r.runSubSteps(ctx, def, step.Steps, data, state, runID, true)
	default:
		return r.adapters.Execute(ctx, step, data)
	}
}

// runSubSteps executes nested steps of a conditional branch or parallel
// group. Sub-step outputs land under their step IDs in the returned map.
func (r *Runner) runSubSteps(ctx context.Context, def *models.WorkflowDefinition, steps []models.WorkflowStep, data map[string]any, state *runState, runID string, parallel bool) (map[string]any, error) {
	outputs := make(map[string]any, len(steps))
	var mu sync.Mutex

	runOne := func(ctx context.Context, sub *models.WorkflowStep) error {
		merged := make(map[string]any, len(data)+len(sub.Inputs))
		for k, v := range data {
			merged[k] = v
		}
		for k, v := range sub.Inputs {
			merged[k] = v
		}
		out, err := r.dispatch(ctx, def, sub, merged, state, runID)
		if err != nil {
			return fmt.Errorf("sub-step %q: %w", sub.ID, err)
		}
		mu.Lock()
		outputs[sub.ID] = out
		mu.Unlock()
		return nil
	}

	if parallel {
		limit := def.Execution.ParallelLimit
		if limit <= 0 {
			limit = 1
		}
		g, groupCtx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i := range steps {
			sub := &steps[i]
			g.Go(func() error {
				return runOne(groupCtx, sub)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return outputs, nil
	}

	for i := range steps {
		if err := runOne(ctx, &steps[i]); err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

// resolveInputs merges, in increasing precedence: workflow inputs,
// upstream outputs keyed by dependency ID, then the step's own inputs.
func (r *Runner) resolveInputs(step *models.WorkflowStep, inputs map[string]any, state *runState) map[string]any {
	data := make(map[string]any, len(inputs)+len(step.DependsOn)+len(step.Inputs))
	for k, v := range inputs {
		data[k] = v
	}
	for _, dep := range step.DependsOn {
		if out, ok := state.output(dep); ok {
			data[dep] = out
		}
	}
	for k, v := range step.Inputs {
		data[k] = v
	}
	return data
}

func (r *Runner) publish(eventType, tenantID, runID string, payload map[string]any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Type:      eventType,
		Channel:   events.RunChannel(runID),
		TenantID:  tenantID,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
