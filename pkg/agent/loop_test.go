package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/governance"
	"github.com/praetorworks/praetor/pkg/llm"
	"github.com/praetorworks/praetor/pkg/masking"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
	"github.com/praetorworks/praetor/pkg/tools"
	"github.com/praetorworks/praetor/pkg/trace"
)

// scriptedCompleter replays canned responses and records every request.
type scriptedCompleter struct {
	responses []llm.Response
	errs      []error
	requests  []llm.Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.Response{}, s.errs[i]
	}
	if i >= len(s.responses) {
		return llm.Response{}, errors.New("scripted completer exhausted")
	}
	return s.responses[i], nil
}

type fakeTool struct {
	name    string
	schema  map[string]any
	execute func(args map[string]any) tools.Result
}

func (f *fakeTool) Name() string           { return f.name }
func (f *fakeTool) Description() string    { return "test tool " + f.name }
func (f *fakeTool) Schema() map[string]any { return f.schema }
func (f *fakeTool) Execute(_ context.Context, args map[string]any, _ tools.Invocation) tools.Result {
	return f.execute(args)
}

func echoSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required":             []any{"text"},
		"additionalProperties": false,
	}
}

func testAgent(toolNames ...string) *models.AgentDefinition {
	return &models.AgentDefinition{
		Name:     "worker",
		Version:  "1.0.0",
		Role:     models.RoleImplementer,
		Model:    "local-test",
		Tools:    toolNames,
		Autonomy: models.AutonomyAutonomous,
		Constraints: models.AgentConstraints{
			MaxTokens:      4096,
			TimeoutSeconds: 60,
		},
	}
}

func testToolRegistry(t *testing.T, ts ...tools.Tool) *registry.ToolRegistry {
	t.Helper()
	r := registry.NewToolRegistry(nil)
	for _, tool := range ts {
		require.NoError(t, r.Register(tool))
	}
	return r
}

func toolCallsResponse(calls ...llm.ToolCall) llm.Response {
	return llm.Response{FinishReason: llm.FinishToolCalls, ToolCalls: calls}
}

func finalResponse(text string) llm.Response {
	return llm.Response{FinishReason: llm.FinishStop, Content: text}
}

func TestLoop_CompletesWithoutTools(t *testing.T) {
	completer := &scriptedCompleter{responses: []llm.Response{finalResponse("all done")}}
	loop := NewLoop(Deps{Completer: completer}, LoopConfig{})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent(), Task: "say hi"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonCompleted, result.Reason)
	assert.Equal(t, "all done", result.FinalText)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.ToolSequence)
}

func TestLoop_ToolCallThenCompletion(t *testing.T) {
	echo := &fakeTool{name: "echo", schema: echoSchema(), execute: func(args map[string]any) tools.Result {
		text, _ := args["text"].(string)
		return tools.Textf("echo: %s", text)
	}}
	completer := &scriptedCompleter{responses: []llm.Response{
		toolCallsResponse(llm.ToolCall{ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`}),
		finalResponse("the tool said hi"),
	}}
	loop := NewLoop(Deps{Completer: completer, Tools: testToolRegistry(t, echo)}, LoopConfig{})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent("echo"), Task: "use echo"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonCompleted, result.Reason)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, []string{"echo"}, result.ToolSequence)
	require.Len(t, result.ToolCalls, 1)
	assert.True(t, result.ToolCalls[0].Success)
	assert.Equal(t, "echo: hi", result.ToolCalls[0].Output)

	// The second request carries the assistant tool call and the
	// tool-role observation.
	require.Len(t, completer.requests, 2)
	msgs := completer.requests[1].Messages
	require.GreaterOrEqual(t, len(msgs), 3)
	last := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.Equal(t, "echo: hi", last.Content)

	// Tools are advertised on every request.
	require.Len(t, completer.requests[0].Tools, 1)
	assert.Equal(t, "echo", completer.requests[0].Tools[0].Name)
}

func TestLoop_SchemaValidationErrorIsRecoverable(t *testing.T) {
	echo := &fakeTool{name: "echo", schema: echoSchema(), execute: func(map[string]any) tools.Result {
		return tools.Textf("ok")
	}}
	completer := &scriptedCompleter{responses: []llm.Response{
		toolCallsResponse(llm.ToolCall{ID: "c1", Name: "echo", Arguments: `{"bogus":1}`}),
		finalResponse("recovered"),
	}}
	loop := NewLoop(Deps{Completer: completer, Tools: testToolRegistry(t, echo)}, LoopConfig{})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent("echo"), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonCompleted, result.Reason)
	// The invalid call never executed.
	assert.Empty(t, result.ToolSequence)

	msgs := completer.requests[1].Messages
	last := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Contains(t, last.Content, "error:")
}

func TestLoop_ConsecutiveErrorsTerminate(t *testing.T) {
	failing := &fakeTool{name: "flaky", schema: nil, execute: func(map[string]any) tools.Result {
		return tools.Errorf("boom")
	}}
	var responses []llm.Response
	for i := 0; i < 4; i++ {
		responses = append(responses, toolCallsResponse(
			llm.ToolCall{ID: "c", Name: "flaky", Arguments: `{}`}))
	}
	completer := &scriptedCompleter{responses: responses}
	loop := NewLoop(Deps{Completer: completer, Tools: testToolRegistry(t, failing)}, LoopConfig{})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent("flaky"), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonError, result.Reason)
	// Default threshold is three.
	assert.Len(t, result.ToolCalls, 3)
}

func TestLoop_ModelErrorTerminates(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("provider unavailable")}}
	collector := trace.NewCollector(nil, nil)
	loop := NewLoop(Deps{Completer: completer, Collector: collector}, LoopConfig{})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent(), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonError, result.Reason)

	failures := collector.ListFailures(models.TraceFilters{})
	require.Len(t, failures, 1)
	assert.Equal(t, trace.SubcodeLoopModelError, failures[0].Subcode)
}

func TestLoop_GovernanceDenial(t *testing.T) {
	echo := &fakeTool{name: "echo", schema: echoSchema(), execute: func(map[string]any) tools.Result {
		return tools.Textf("should not run")
	}}
	completer := &scriptedCompleter{responses: []llm.Response{
		toolCallsResponse(llm.ToolCall{ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`}),
	}}
	engine := governance.NewEngine(governance.NewRateLimiter(1000, 1000), nil, nil, nil)
	collector := trace.NewCollector(nil, nil)
	loop := NewLoop(Deps{
		Completer:  completer,
		Tools:      testToolRegistry(t, echo),
		Governance: engine,
		Collector:  collector,
	}, LoopConfig{})

	// Caller carries no scopes, so the scope check denies.
	result, err := loop.Run(context.Background(), RunInput{
		Agent:  testAgent("echo"),
		Task:   "x",
		Caller: governance.CallerContext{TenantID: "acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonGovernanceDenied, result.Reason)
	assert.Empty(t, result.ToolSequence)

	traces := collector.ListTraces(models.TraceFilters{})
	require.Len(t, traces, 1)
	assert.Equal(t, models.TraceFailed, traces[0].Outcome.Status)
	assert.Equal(t, trace.SubcodeLoopGovernanceDenied, traces[0].Outcome.FailureCode)
}

func TestLoop_LeakageDetected(t *testing.T) {
	leaky := &fakeTool{name: "leaky", schema: nil, execute: func(map[string]any) tools.Result {
		return tools.Textf("output with %s inside", masking.DefaultCanaryMarker)
	}}
	completer := &scriptedCompleter{responses: []llm.Response{
		toolCallsResponse(llm.ToolCall{ID: "c1", Name: "leaky", Arguments: `{}`}),
	}}
	collector := trace.NewCollector(nil, nil)
	loop := NewLoop(Deps{
		Completer: completer,
		Tools:     testToolRegistry(t, leaky),
		Collector: collector,
	}, LoopConfig{})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent("leaky"), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonLeakageDetected, result.Reason)

	// Leakage closes the trace as completed but still files a failure.
	traces := collector.ListTraces(models.TraceFilters{})
	require.Len(t, traces, 1)
	assert.Equal(t, models.TraceCompleted, traces[0].Outcome.Status)
	failures := collector.ListFailures(models.TraceFilters{})
	require.Len(t, failures, 1)
	assert.Equal(t, trace.SubcodeLoopLeakageDetected, failures[0].Subcode)
	assert.Equal(t, models.SeverityCritical, failures[0].Severity)
}

func TestLoop_MaxIterations(t *testing.T) {
	echo := &fakeTool{name: "echo", schema: nil, execute: func(map[string]any) tools.Result {
		return tools.Textf("ok")
	}}
	var responses []llm.Response
	for i := 0; i < 3; i++ {
		// Distinct arguments keep the stuck detector quiet.
		responses = append(responses, toolCallsResponse(
			llm.ToolCall{ID: "c", Name: "echo", Arguments: `{"text":"` + string(rune('a'+i)) + `"}`}))
	}
	completer := &scriptedCompleter{responses: responses}
	collector := trace.NewCollector(nil, nil)
	loop := NewLoop(Deps{
		Completer: completer,
		Tools:     testToolRegistry(t, echo),
		Collector: collector,
	}, LoopConfig{MaxIterations: 3})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent("echo"), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonMaxIterations, result.Reason)
	assert.Equal(t, 3, result.Iterations)

	// Iteration exhaustion is a timeout status, not a failure.
	traces := collector.ListTraces(models.TraceFilters{})
	require.Len(t, traces, 1)
	assert.Equal(t, models.TraceTimeout, traces[0].Outcome.Status)
	assert.Empty(t, collector.ListFailures(models.TraceFilters{}))
}

func TestLoop_StuckDetectorTerminates(t *testing.T) {
	echo := &fakeTool{name: "echo", schema: nil, execute: func(map[string]any) tools.Result {
		return tools.Textf("ok")
	}}
	var responses []llm.Response
	for i := 0; i < 10; i++ {
		responses = append(responses, toolCallsResponse(
			llm.ToolCall{ID: "c", Name: "echo", Arguments: `{"text":"same"}`}))
	}
	completer := &scriptedCompleter{responses: responses}
	loop := NewLoop(Deps{Completer: completer, Tools: testToolRegistry(t, echo)}, LoopConfig{
		ConsecutiveErrorThreshold: 100, // isolate the stuck detector
	})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent("echo"), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonError, result.Reason)
	// Fires once the window (default 6) fills with identical calls.
	assert.Len(t, result.ToolCalls, DefaultStuckWindow)
}

func TestLoop_ContextExhausted(t *testing.T) {
	completer := &scriptedCompleter{responses: []llm.Response{
		{FinishReason: llm.FinishLength, Content: "partial"},
	}}
	loop := NewLoop(Deps{Completer: completer}, LoopConfig{})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent(), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonContextExhausted, result.Reason)
}

func TestLoop_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	completer := &scriptedCompleter{responses: []llm.Response{finalResponse("never")}}
	loop := NewLoop(Deps{Completer: completer}, LoopConfig{})

	result, err := loop.Run(ctx, RunInput{Agent: testAgent(), Task: "x"})
	require.NoError(t, err)
	assert.Equal(t, trace.ReasonBudgetExceeded, result.Reason)
	assert.Zero(t, result.Iterations)
}

func TestLoop_ObservationTruncated(t *testing.T) {
	big := &fakeTool{name: "big", schema: nil, execute: func(map[string]any) tools.Result {
		out := make([]byte, 100)
		for i := range out {
			out[i] = 'x'
		}
		return tools.Result{Success: true, Content: string(out)}
	}}
	completer := &scriptedCompleter{responses: []llm.Response{
		toolCallsResponse(llm.ToolCall{ID: "c1", Name: "big", Arguments: `{}`}),
		finalResponse("done"),
	}}
	loop := NewLoop(Deps{Completer: completer, Tools: testToolRegistry(t, big)}, LoopConfig{
		ObservationCapBytes: 10,
	})

	result, err := loop.Run(context.Background(), RunInput{Agent: testAgent("big"), Task: "x"})
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Output, "[output truncated]")
	assert.Less(t, len(result.ToolCalls[0].Output), 50)
}

func TestLoop_UnknownAgentTool(t *testing.T) {
	completer := &scriptedCompleter{}
	loop := NewLoop(Deps{Completer: completer, Tools: testToolRegistry(t)}, LoopConfig{})

	_, err := loop.Run(context.Background(), RunInput{Agent: testAgent("missing"), Task: "x"})
	assert.Error(t, err)
}
