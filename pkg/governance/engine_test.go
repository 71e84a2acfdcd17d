package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/models"
)

func executeCaller() CallerContext {
	return CallerContext{
		TenantID: "acme",
		Scopes:   []string{"tools:execute"},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(NewRateLimiter(1000, 1000), NewAuditLog(10, nil, nil), nil, nil)
}

func TestEngine_Authorize_Allow(t *testing.T) {
	e := newTestEngine(t)

	d := e.Authorize("shell", map[string]any{"command": "ls"}, executeCaller(), models.AutonomyAutonomous, nil)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
}

func TestEngine_Authorize_BudgetStoppedFirst(t *testing.T) {
	e := newTestEngine(t)
	ec := models.NewEnforcementContext("budget-1", time.Now())
	ec.Stop("max_iterations reached")

	// A stopped budget denies even a call that breaks other rules,
	// proving it runs before them.
	d := e.Authorize("shell", map[string]any{"command": "echo $(id)"}, CallerContext{}, models.AutonomyReadOnly, ec)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonBudgetStopped, d.Reason)
	assert.Equal(t, "max_iterations reached", d.Detail)
}

func TestEngine_Authorize_RateLimit(t *testing.T) {
	e := NewEngine(NewRateLimiter(1, 1), nil, nil, nil)

	first := e.Authorize("recall", nil, executeCaller(), models.AutonomyAutonomous, nil)
	require.True(t, first.Allowed)

	second := e.Authorize("recall", nil, executeCaller(), models.AutonomyAutonomous, nil)
	assert.False(t, second.Allowed)
	assert.Equal(t, ReasonRateLimited, second.Reason)
	assert.Equal(t, "tools:execute", second.Detail)
}

func TestEngine_Authorize_ReadOnlyDeniesWriteSet(t *testing.T) {
	e := newTestEngine(t)

	for _, tool := range []string{"shell", "file_ops", "browser"} {
		d := e.Authorize(tool, nil, executeCaller(), models.AutonomyReadOnly, nil)
		assert.False(t, d.Allowed, "tool %s", tool)
		assert.Equal(t, ReasonReadOnly, d.Reason)
	}

	// Read-only tools stay available.
	d := e.Authorize("recall", nil, executeCaller(), models.AutonomyReadOnly, nil)
	assert.True(t, d.Allowed)
}

func TestEngine_Authorize_SupervisedAllowsWrites(t *testing.T) {
	e := newTestEngine(t)

	d := e.Authorize("file_ops", map[string]any{"operation": "write", "path": "/tmp/x"},
		executeCaller(), models.AutonomySupervised, nil)
	assert.True(t, d.Allowed)
}

func TestEngine_Authorize_ScopeCheck(t *testing.T) {
	e := newTestEngine(t)

	d := e.Authorize("recall", nil, CallerContext{Scopes: []string{"other:scope"}}, models.AutonomyAutonomous, nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonScopeMissing, d.Reason)
	assert.Equal(t, DefaultToolScope, d.Detail)
}

func TestEngine_RequireScope(t *testing.T) {
	e := newTestEngine(t)
	e.RequireScope("web_fetch", "net:fetch")
	assert.Equal(t, "net:fetch", e.ScopeFor("web_fetch"))
	assert.Equal(t, DefaultToolScope, e.ScopeFor("shell"))

	caller := CallerContext{Scopes: []string{"net:fetch"}}
	d := e.Authorize("web_fetch", map[string]any{"url": "https://example.com"}, caller, models.AutonomyAutonomous, nil)
	assert.True(t, d.Allowed)
}

func TestEngine_Authorize_ShellRules(t *testing.T) {
	e := newTestEngine(t)
	caller := executeCaller()
	caller.CommandAllowlist = []string{"ls", "echo"}

	d := e.Authorize("shell", map[string]any{"command": "echo $(id)"}, caller, models.AutonomyAutonomous, nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonShellSyntax, d.Reason)

	d = e.Authorize("shell", map[string]any{"command": "ls | rm -rf /"}, caller, models.AutonomyAutonomous, nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCommandDenied, d.Reason)

	d = e.Authorize("shell", map[string]any{"command": "ls && echo ok"}, caller, models.AutonomyAutonomous, nil)
	assert.True(t, d.Allowed)
}

func TestEngine_Authorize_PathAllowlist(t *testing.T) {
	e := newTestEngine(t)
	caller := executeCaller()
	caller.PathAllowlist = []string{"/workspace/", "/tmp/"}

	d := e.Authorize("file_ops", map[string]any{"path": "/workspace/src/main.go"}, caller, models.AutonomyAutonomous, nil)
	assert.True(t, d.Allowed)

	d = e.Authorize("file_ops", map[string]any{"path": "/etc/passwd"}, caller, models.AutonomyAutonomous, nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonPathDenied, d.Reason)

	// No allowlist means no path restriction.
	open := executeCaller()
	d = e.Authorize("file_ops", map[string]any{"path": "/etc/passwd"}, open, models.AutonomyAutonomous, nil)
	assert.True(t, d.Allowed)
}

func TestEngine_Authorize_DomainAllowlist(t *testing.T) {
	e := newTestEngine(t)
	caller := executeCaller()
	caller.DomainAllowlist = []string{"example.com"}

	tests := []struct {
		url     string
		allowed bool
		reason  string
	}{
		{url: "https://example.com/page", allowed: true},
		{url: "https://docs.example.com/api", allowed: true},
		{url: "https://evil-example.com/", allowed: false, reason: ReasonDomainDenied},
		{url: "https://example.com.evil.net/", allowed: false, reason: ReasonDomainDenied},
		{url: "not a url", allowed: false, reason: ReasonInvalidURL},
	}
	for _, tt := range tests {
		d := e.Authorize("web_fetch", map[string]any{"url": tt.url}, caller, models.AutonomyAutonomous, nil)
		assert.Equal(t, tt.allowed, d.Allowed, "url %s", tt.url)
		if !tt.allowed {
			assert.Equal(t, tt.reason, d.Reason, "url %s", tt.url)
		}
	}
}

func TestEngine_Authorize_PublishesDenials(t *testing.T) {
	bus := events.NewBus(nil)
	sub := bus.Subscribe(events.GlobalChannel)
	defer sub.Close()
	e := NewEngine(NewRateLimiter(1000, 1000), nil, bus, nil)

	e.Authorize("shell", nil, CallerContext{TenantID: "acme"}, models.AutonomyReadOnly, nil)

	select {
	case ev := <-sub.C:
		assert.Equal(t, events.EventTypeGovernanceDenied, ev.Type)
		assert.Equal(t, "acme", ev.TenantID)
		assert.Equal(t, ReasonReadOnly, ev.Payload["reason"])
	default:
		t.Fatal("expected a governance denial event")
	}
}

func TestEngine_RecordOutcome(t *testing.T) {
	audit := NewAuditLog(10, nil, nil)
	e := NewEngine(NewRateLimiter(1000, 1000), audit, nil, nil)

	e.RecordOutcome("acme", "shell", map[string]any{"command": "ls"}, true, "")
	e.RecordOutcome("acme", "shell", map[string]any{"command": "cat x"}, false, "exit status 1")

	records := audit.Recent(0)
	require.Len(t, records, 2)
	assert.Equal(t, "cat x", records[0].Arguments["command"])
	assert.False(t, records[0].Success)
	assert.Equal(t, "exit status 1", records[0].Error)
	assert.True(t, records[1].Success)
}
