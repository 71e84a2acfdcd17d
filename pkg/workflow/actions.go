package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/sandbox"
	"github.com/praetorworks/praetor/pkg/tools"
)

// httpResponseCap bounds the body an http-request step reads back.
const httpResponseCap = 512 << 10

// AgentInvoker runs one agent to completion and returns its final text.
// The agent service satisfies this.
type AgentInvoker interface {
	Invoke(ctx context.Context, agentName, task string, inputs map[string]any) (string, error)
}

// Adapters dispatches leaf step actions. Conditional and parallel-group
// steps are structural and handled by the runner itself.
type Adapters struct {
	agents  AgentInvoker
	sandbox *sandbox.Registry
	client  *http.Client
	logger  *slog.Logger
}

// NewAdapters builds the adapter set. The HTTP client dials through the
// SSRF guard so a step can never reach private address space even when
// DNS changes between check and connect.
func NewAdapters(agents AgentInvoker, sb *sandbox.Registry, logger *slog.Logger) *Adapters {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: tools.GuardedControl,
	}
	return &Adapters{
		agents:  agents,
		sandbox: sb,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{DialContext: dialer.DialContext},
		},
		logger: logger.With("component", "workflow_adapters"),
	}
}

// Execute dispatches one leaf action with its resolved inputs and returns
// the step's outputs.
func (a *Adapters) Execute(ctx context.Context, step *models.WorkflowStep, data map[string]any) (map[string]any, error) {
	switch step.Action {
	case models.ActionInvokeAgent:
		return a.invokeAgent(ctx, step, data)
	case models.ActionRunCommand:
		return a.runCommand(ctx, step)
	case models.ActionValidate:
		return a.validate(step, data)
	case models.ActionTransform:
		return a.transform(step, data)
	case models.ActionWait:
		return a.wait(ctx, step, data)
	case models.ActionExecuteCode:
		return a.executeCode(ctx, step, data)
	case models.ActionHTTPRequest:
		return a.httpRequest(ctx, step, data)
	default:
		return nil, fmt.Errorf("step %q: no adapter for action %q", step.ID, step.Action)
	}
}

func (a *Adapters) invokeAgent(ctx context.Context, step *models.WorkflowStep, data map[string]any) (map[string]any, error) {
	if a.agents == nil {
		return nil, errors.New("no agent invoker configured")
	}
	task, _ := data["task"].(string)
	if task == "" {
		task = step.Name
	}
	output, err := a.agents.Invoke(ctx, step.Agent, task, data)
	if err != nil {
		return nil, fmt.Errorf("invoke agent %q: %w", step.Agent, err)
	}
	return map[string]any{"output": output}, nil
}

func (a *Adapters) runCommand(ctx context.Context, step *models.WorkflowStep) (map[string]any, error) {
	if a.sandbox == nil {
		return nil, errors.New("no sandbox registry configured")
	}
	out, err := a.sandbox.Execute(ctx, sandbox.Contract{
		ToolID:    step.ID,
		AdapterID: step.AdapterID,
		Inputs:    sandbox.Inputs{Command: []string{"sh", "-c", step.Command}},
		Sandbox:   sandboxLimits(step),
	})
	if err != nil {
		return nil, fmt.Errorf("run command: %w", err)
	}
	result := map[string]any{
		"stdout":    out.Stdout,
		"stderr":    out.Stderr,
		"exit_code": out.ExitCode,
	}
	if !out.Success {
		return result, fmt.Errorf("command exited with code %d", out.ExitCode)
	}
	return result, nil
}

// validate checks data["value"] (or, absent that, the whole data map)
// against the JSON schema bound at inputs["schema"].
func (a *Adapters) validate(step *models.WorkflowStep, data map[string]any) (map[string]any, error) {
	schema, ok := data["schema"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("step %q: validate requires a schema input", step.ID)
	}
	validator, err := tools.CompileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("step %q: compile schema: %w", step.ID, err)
	}
	payload, ok := data["value"].(map[string]any)
	if !ok {
		payload = data
	}
	if err := validator.Validate(payload); err != nil {
		return map[string]any{"valid": false, "error": err.Error()}, fmt.Errorf("step %q: %w", step.ID, err)
	}
	return map[string]any{"valid": true}, nil
}

// transform renders the template bound at inputs["template"] against the
// resolved input data.
func (a *Adapters) transform(step *models.WorkflowStep, data map[string]any) (map[string]any, error) {
	text, ok := data["template"].(string)
	if !ok {
		return nil, fmt.Errorf("step %q: transform requires a template input", step.ID)
	}
	tmpl, err := template.New(step.ID).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("step %q: parse template: %w", step.ID, err)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return nil, fmt.Errorf("step %q: render template: %w", step.ID, err)
	}
	return map[string]any{"output": sb.String()}, nil
}

func (a *Adapters) wait(ctx context.Context, step *models.WorkflowStep, data map[string]any) (map[string]any, error) {
	if step.Duration != "" {
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return nil, fmt.Errorf("step %q: bad duration: %w", step.ID, err)
		}
		select {
		case <-time.After(d):
			return map[string]any{"waited": step.Duration}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	// wait_for polls a condition against the shared context until it
	// holds or the step deadline fires.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if evalCondition(step.WaitFor, data) {
			return map[string]any{"waited": step.WaitFor}, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("step %q: wait_for %q: %w", step.ID, step.WaitFor, ctx.Err())
		}
	}
}

func (a *Adapters) executeCode(ctx context.Context, step *models.WorkflowStep, data map[string]any) (map[string]any, error) {
	if a.sandbox == nil {
		return nil, errors.New("no sandbox registry configured")
	}
	code, _ := data["code"].(string)
	out, err := a.sandbox.Execute(ctx, sandbox.Contract{
		ToolID:    step.ToolID,
		AdapterID: step.AdapterID,
		Inputs: sandbox.Inputs{
			Code:      code,
			Arguments: data,
		},
		Sandbox: sandboxLimits(step),
	})
	if err != nil {
		return nil, fmt.Errorf("execute code: %w", err)
	}
	result := map[string]any{
		"stdout":    out.Stdout,
		"stderr":    out.Stderr,
		"exit_code": out.ExitCode,
		"truncated": out.Truncated,
	}
	if !out.Success {
		return result, fmt.Errorf("executor exited with code %d", out.ExitCode)
	}
	return result, nil
}

// httpRequest fetches a URL. The guard runs synchronously before any
// socket opens; a private target fails as a validation error.
func (a *Adapters) httpRequest(ctx context.Context, step *models.WorkflowStep, data map[string]any) (map[string]any, error) {
	rawURL, _ := data["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("step %q: http-request requires a url input", step.ID)
	}
	if err := tools.GuardURL(rawURL); err != nil {
		return nil, fmt.Errorf("step %q: %w", step.ID, err)
	}
	method, _ := data["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if payload, ok := data["body"].(string); ok && payload != "" {
		body = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("step %q: build request: %w", step.ID, err)
	}
	if headers, ok := data["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", step.ID, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, httpResponseCap))
	if err != nil {
		return nil, fmt.Errorf("step %q: read response: %w", step.ID, err)
	}
	return map[string]any{
		"status": resp.StatusCode,
		"body":   string(raw),
	}, nil
}

func sandboxLimits(step *models.WorkflowStep) sandbox.Limits {
	limits := sandbox.Limits{}
	if step.Sandbox != nil {
		limits = sandbox.Limits{
			TimeoutMs:   step.Sandbox.TimeoutMs,
			MemoryBytes: step.Sandbox.MemoryBytes,
			CPUQuota:    step.Sandbox.CPUQuota,
			NetworkOff:  step.Sandbox.NetworkOff,
		}
	}
	if limits.TimeoutMs == 0 && step.TimeoutSeconds > 0 {
		limits.TimeoutMs = step.TimeoutSeconds * 1000
	}
	return limits
}

// evalCondition evaluates a tiny predicate language against the shared
// context: `a == b`, `a != b`, or bare-key truthiness. Operands resolve
// as context keys first, then as literals (quotes optional).
func evalCondition(cond string, data map[string]any) bool {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true
	}
	if left, right, ok := splitOperator(cond, "=="); ok {
		return operand(left, data) == operand(right, data)
	}
	if left, right, ok := splitOperator(cond, "!="); ok {
		return operand(left, data) != operand(right, data)
	}
	return truthy(lookup(cond, data))
}

func splitOperator(cond, op string) (string, string, bool) {
	idx := strings.Index(cond, op)
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(cond[:idx]), strings.TrimSpace(cond[idx+len(op):]), true
}

// operand resolves a condition operand to its comparable string form.
func operand(expr string, data map[string]any) string {
	if unquoted := strings.Trim(expr, `"'`); unquoted != expr {
		return unquoted
	}
	if v, ok := lookupOK(expr, data); ok {
		return fmt.Sprintf("%v", v)
	}
	return expr
}

// lookup resolves dotted paths ("build.exit_code") through nested maps.
func lookup(path string, data map[string]any) any {
	v, _ := lookupOK(path, data)
	return v
}

func lookupOK(path string, data map[string]any) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		s := fmt.Sprintf("%v", val)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n != 0
		}
		return s != ""
	}
}
