// Package agent drives bounded reasoning runs: the model proposes tool
// calls, each call passes governance, budget enforcement, and the hook
// pipeline before executing, and its output is fed back as an
// observation until the model produces a final answer or a limit fires.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/praetorworks/praetor/pkg/autonomy"
	"github.com/praetorworks/praetor/pkg/governance"
	"github.com/praetorworks/praetor/pkg/hooks"
	"github.com/praetorworks/praetor/pkg/llm"
	"github.com/praetorworks/praetor/pkg/masking"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
	"github.com/praetorworks/praetor/pkg/tools"
	"github.com/praetorworks/praetor/pkg/trace"
)

// Completer issues one model completion. The llm router satisfies this.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
}

// HookRunner fires one hook event. Both the sequential and the
// concurrent runner satisfy this.
type HookRunner interface {
	Run(ctx context.Context, hc *hooks.HookContext)
}

// TraceSink is the subset of the trace collector the loop writes to.
type TraceSink interface {
	StartTrace(opts trace.StartOptions) string
	AddStep(traceID, stepID string) error
	AddAction(traceID, stepID string, action models.TraceAction) error
	CompleteTrace(traceID string, status models.TraceStatus, failureCode, failureMessage string) error
	RecordFailure(traceID, message string, category models.FailureCategory, severity models.FailureSeverity, subcode string) (string, error)
}

// Loop is the reasoning driver. Construct once, run many times; each Run
// keeps its own conversation and counters.
type Loop struct {
	completer  Completer
	tools      *registry.ToolRegistry
	governance *governance.Engine
	enforcer   *autonomy.Enforcer
	preHooks   HookRunner
	postHooks  HookRunner
	collector  TraceSink
	cfg        LoopConfig
	logger     *slog.Logger
	now        func() time.Time
}

// Deps collects the collaborators a Loop wires together. Governance,
// enforcer, hook runners, and collector may each be nil to disable that
// stage.
type Deps struct {
	Completer  Completer
	Tools      *registry.ToolRegistry
	Governance *governance.Engine
	Enforcer   *autonomy.Enforcer
	PreHooks   HookRunner
	PostHooks  HookRunner
	Collector  TraceSink
	Logger     *slog.Logger
}

// NewLoop builds a reasoning loop with the given collaborators and limits.
func NewLoop(deps Deps, cfg LoopConfig) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		completer:  deps.Completer,
		tools:      deps.Tools,
		governance: deps.Governance,
		enforcer:   deps.Enforcer,
		preHooks:   deps.PreHooks,
		postHooks:  deps.PostHooks,
		collector:  deps.Collector,
		cfg:        cfg.withDefaults(),
		logger:     logger.With("component", "agent_loop"),
		now:        time.Now,
	}
}

// SetClock overrides the time source for tests.
func (l *Loop) SetClock(now func() time.Time) {
	l.now = now
}

// RunInput is one reasoning run. Messages, when non-empty, replaces the
// conversation BuildMessages would assemble from Task and Inputs.
type RunInput struct {
	Agent    *models.AgentDefinition
	Task     string
	Inputs   map[string]any
	Messages []llm.Message

	TaskID    string
	SessionID string
	RunID     string

	Caller     governance.CallerContext
	Invocation tools.Invocation

	// Budget and Enforcement, when both set, gate every tool call.
	Budget      *models.AutonomyBudget
	Enforcement *models.EnforcementContext

	Skills SkillResolver
}

// ToolCallRecord is one executed (or denied) tool call.
type ToolCallRecord struct {
	Tool       string `json:"tool"`
	Arguments  string `json:"arguments,omitempty"`
	Output     string `json:"output,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Result is the outcome of one run.
type Result struct {
	FinalText    string                  `json:"final_text,omitempty"`
	Iterations   int                     `json:"iterations"`
	ToolCalls    []ToolCallRecord        `json:"tool_calls,omitempty"`
	ToolSequence []string                `json:"tool_sequence,omitempty"`
	Reason       trace.TerminationReason `json:"reason"`
	TraceID      string                  `json:"trace_id,omitempty"`
	Usage        llm.Usage               `json:"usage"`
}

type toolEntry struct {
	tool      tools.Tool
	validator *tools.Validator
}

// Run executes the loop to termination. The returned error is non-nil
// only for setup failures (unknown agent tools, bad skills); loop-level
// failures terminate normally and surface in Result.Reason.
func (l *Loop) Run(ctx context.Context, input RunInput) (Result, error) {
	def := input.Agent
	if def == nil {
		return Result{}, errors.New("run input missing agent definition")
	}

	selected, err := l.resolveTools(def.Tools)
	if err != nil {
		return Result{}, err
	}

	messages := input.Messages
	if len(messages) == 0 {
		messages, err = BuildMessages(def, input.Skills, input.Task, input.Inputs)
		if err != nil {
			return Result{}, err
		}
	}

	run := &runState{
		input:    input,
		def:      def,
		selected: selected,
		messages: messages,
		specs:    toolSpecs(selected),
		detector: newStuckDetector(l.cfg.StuckWindow, l.cfg.StuckThreshold),
		leakage:  masking.NewLeakageDetector(l.cfg.LeakageMarkers),
	}
	if l.collector != nil {
		run.traceID = l.collector.StartTrace(trace.StartOptions{
			TaskID:    input.TaskID,
			SessionID: input.SessionID,
			RunID:     input.RunID,
			TenantID:  input.Caller.TenantID,
			AgentID:   def.Name,
			AgentRole: def.Role,
			Model:     def.Model,
		})
	}

	reason, modelErr, detail := l.iterate(ctx, run)
	return l.finish(run, reason, modelErr, detail), nil
}

// runState is the per-run mutable state threaded through the loop.
type runState struct {
	input    RunInput
	def      *models.AgentDefinition
	selected []toolEntry
	messages []llm.Message
	specs    []llm.ToolSpec

	detector *stuckDetector
	leakage  *masking.LeakageDetector

	traceID     string
	stepID      string
	iteration   int
	consecutive int
	finalText   string
	calls       []ToolCallRecord
	sequence    []string
	usage       llm.Usage
}

func (l *Loop) resolveTools(names []string) ([]toolEntry, error) {
	if len(names) == 0 || l.tools == nil {
		return nil, nil
	}
	ts, err := l.tools.Select(names)
	if err != nil {
		return nil, err
	}
	entries := make([]toolEntry, 0, len(ts))
	for _, t := range ts {
		var validator *tools.Validator
		if schema := t.Schema(); schema != nil {
			validator, err = tools.CompileSchema(schema)
			if err != nil {
				// A broken schema downgrades to accept-anything
				// rather than blocking the whole run.
				l.logger.Warn("tool schema failed to compile",
					"tool", t.Name(), "error", err)
				validator = nil
			}
		}
		entries = append(entries, toolEntry{tool: t, validator: validator})
	}
	return entries, nil
}

// iterate runs model rounds until a termination reason fires.
func (l *Loop) iterate(ctx context.Context, run *runState) (trace.TerminationReason, bool, string) {
	temperature := 0.0
	if run.def.Temperature != nil {
		temperature = *run.def.Temperature
	}

	for run.iteration < l.cfg.MaxIterations {
		if reason, ok := contextReason(ctx); ok {
			return reason, false, ctx.Err().Error()
		}
		run.iteration++
		run.stepID = fmt.Sprintf("iteration-%d", run.iteration)
		if l.collector != nil && run.traceID != "" {
			_ = l.collector.AddStep(run.traceID, run.stepID)
		}
		if run.input.Enforcement != nil {
			run.input.Enforcement.RecordIteration()
		}

		resp, err := l.completer.Complete(ctx, llm.Request{
			Model:       run.def.Model,
			Messages:    run.messages,
			Temperature: temperature,
			MaxTokens:   run.def.Constraints.MaxTokens,
			Tools:       run.specs,
		})
		if err != nil {
			if reason, ok := contextReason(ctx); ok {
				return reason, false, err.Error()
			}
			return trace.ReasonError, true, err.Error()
		}
		run.usage.PromptTokens += resp.Usage.PromptTokens
		run.usage.CompletionTokens += resp.Usage.CompletionTokens
		run.usage.TotalTokens += resp.Usage.TotalTokens

		if resp.FinishReason == llm.FinishLength {
			return trace.ReasonContextExhausted, false, "model stopped at token limit"
		}
		if resp.FinishReason != llm.FinishToolCalls || len(resp.ToolCalls) == 0 {
			run.finalText = resp.Content
			return trace.ReasonCompleted, false, ""
		}

		run.messages = append(run.messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			if reason, modelErr, detail, done := l.handleToolCall(ctx, run, call); done {
				return reason, modelErr, detail
			}
		}
	}
	return trace.ReasonMaxIterations, false, fmt.Sprintf("no final answer after %d iterations", l.cfg.MaxIterations)
}

// handleToolCall validates, authorizes, and executes one proposed call.
// done=true terminates the loop with the returned reason.
func (l *Loop) handleToolCall(ctx context.Context, run *runState, call llm.ToolCall) (trace.TerminationReason, bool, string, bool) {
	args, entry, errText := l.prepareCall(run, call)
	if errText != "" {
		run.messages = append(run.messages, toolMessage(call, "error: "+errText))
		run.consecutive++
		if run.consecutive >= l.cfg.ConsecutiveErrorThreshold {
			return trace.ReasonError, false, fmt.Sprintf("%d consecutive tool errors, last: %s", run.consecutive, errText), true
		}
		return "", false, "", false
	}

	if l.governance != nil {
		decision := l.governance.Authorize(call.Name, args, run.input.Caller, run.def.Autonomy, run.input.Enforcement)
		if !decision.Allowed {
			detail := decision.Reason
			if decision.Detail != "" {
				detail += ": " + decision.Detail
			}
			return trace.ReasonGovernanceDenied, false, detail, true
		}
	}

	if l.enforcer != nil && run.input.Budget != nil && run.input.Enforcement != nil {
		if err := l.enforcer.CheckBeforeToolCall(run.input.Budget, run.input.Enforcement); err != nil {
			return trace.ReasonBudgetExceeded, false, err.Error(), true
		}
	}

	if l.preHooks != nil {
		hc := hooks.NewHookContext(hooks.EventToolExecutePre, run.input.Caller.TenantID, map[string]any{
			hooks.DataTool:  call.Name,
			hooks.DataAgent: run.def.Name,
			"arguments":     args,
		})
		l.preHooks.Run(ctx, hc)
		if aborted, abortReason := hc.Aborted(); aborted {
			return trace.ReasonGovernanceDenied, false, "hook abort: " + abortReason, true
		}
	}

	record := l.executeCall(ctx, run, call, entry, args)

	if l.postHooks != nil {
		hc := hooks.NewHookContext(hooks.EventToolExecutePost, run.input.Caller.TenantID, map[string]any{
			hooks.DataTool:       call.Name,
			hooks.DataAgent:      run.def.Name,
			hooks.DataStep:       run.stepID,
			hooks.DataDurationMS: record.DurationMs,
			"success":            record.Success,
		})
		l.postHooks.Run(ctx, hc)
	}

	if marker := run.leakage.Detect(record.Output); marker != "" {
		return trace.ReasonLeakageDetected, false, "marker " + marker + " in output of " + call.Name, true
	}

	if record.Success {
		run.consecutive = 0
	} else {
		run.consecutive++
		if run.consecutive >= l.cfg.ConsecutiveErrorThreshold {
			return trace.ReasonError, false, fmt.Sprintf("%d consecutive tool errors, last: %s", run.consecutive, record.Error), true
		}
	}

	if run.detector.Observe(call.Name, args) {
		return trace.ReasonError, false, "repeated identical tool calls, agent appears stuck", true
	}
	return "", false, "", false
}

// prepareCall parses arguments, resolves the tool entry, and validates
// against its schema. A non-empty errText is a recoverable per-call error.
func (l *Loop) prepareCall(run *runState, call llm.ToolCall) (map[string]any, toolEntry, string) {
	args, err := tools.ParseArguments(call.Arguments)
	if err != nil {
		return nil, toolEntry{}, err.Error()
	}
	for _, entry := range run.selected {
		if entry.tool.Name() != call.Name {
			continue
		}
		if entry.validator != nil {
			if err := entry.validator.Validate(args); err != nil {
				return nil, toolEntry{}, err.Error()
			}
		}
		return args, entry, ""
	}
	return nil, toolEntry{}, fmt.Sprintf("tool %q is not available to this agent", call.Name)
}

// executeCall runs the tool, records the action on the trace, and appends
// the observation message.
func (l *Loop) executeCall(ctx context.Context, run *runState, call llm.ToolCall, entry toolEntry, args map[string]any) ToolCallRecord {
	started := l.now()
	result := entry.tool.Execute(ctx, args, run.input.Invocation)
	elapsed := l.now().Sub(started).Milliseconds()

	output := truncate(result.Content, l.cfg.ObservationCapBytes)
	record := ToolCallRecord{
		Tool:       call.Name,
		Arguments:  call.Arguments,
		Output:     output,
		Success:    result.Success,
		Error:      result.Error,
		DurationMs: elapsed,
	}
	run.calls = append(run.calls, record)
	run.sequence = append(run.sequence, call.Name)

	if run.input.Enforcement != nil {
		run.input.Enforcement.RecordToolCall()
	}
	if l.governance != nil {
		l.governance.RecordOutcome(run.input.Caller.TenantID, call.Name, args, result.Success, result.Error)
	}
	if l.collector != nil && run.traceID != "" {
		status := models.ActionSuccess
		exitCode := 0
		if !result.Success {
			status = models.ActionFailure
			exitCode = 1
		}
		_ = l.collector.AddAction(run.traceID, run.stepID, models.TraceAction{
			Tool:       call.Name,
			Input:      call.Arguments,
			Output:     output,
			ExitCode:   exitCode,
			DurationMs: elapsed,
			Status:     status,
		})
	}

	observation := output
	if !result.Success {
		observation = "error: " + result.Error
		if output != "" {
			observation += "\n" + output
		}
	}
	run.messages = append(run.messages, toolMessage(call, observation))
	return record
}

// finish closes the trace and records the failure taxonomy entry.
func (l *Loop) finish(run *runState, reason trace.TerminationReason, modelErr bool, detail string) Result {
	subcode := trace.ReasonSubcode(reason, modelErr)
	if l.collector != nil && run.traceID != "" {
		failureCode := ""
		if trace.IsFailure(reason) {
			failureCode = subcode
		}
		_ = l.collector.CompleteTrace(run.traceID, trace.ReasonTraceStatus(reason), failureCode, detail)
		if trace.IsFailure(reason) {
			class := trace.Classify(subcode)
			message := detail
			if message == "" {
				message = class.Description
			}
			_, _ = l.collector.RecordFailure(run.traceID, message, class.Category, class.Severity, subcode)
		}
	}

	l.logger.Info("reasoning loop finished",
		"agent", run.def.Name,
		"reason", string(reason),
		"iterations", run.iteration,
		"tool_calls", len(run.calls),
		"trace_id", run.traceID)

	return Result{
		FinalText:    run.finalText,
		Iterations:   run.iteration,
		ToolCalls:    run.calls,
		ToolSequence: run.sequence,
		Reason:       reason,
		TraceID:      run.traceID,
		Usage:        run.usage,
	}
}

// contextReason maps context expiry to a termination reason. Deadline
// expiry is a timeout; cancellation means the budget or caller pulled
// the plug mid-run.
func contextReason(ctx context.Context) (trace.TerminationReason, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return trace.ReasonTimeout, true
	case errors.Is(ctx.Err(), context.Canceled):
		return trace.ReasonBudgetExceeded, true
	}
	return "", false
}

func toolMessage(call llm.ToolCall, content string) llm.Message {
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n[output truncated]"
}
