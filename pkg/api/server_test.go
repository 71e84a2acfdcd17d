package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/gate"
	"github.com/praetorworks/praetor/pkg/hooks"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/services"
	"github.com/praetorworks/praetor/pkg/trace"
)

// testServer wires a server with an in-memory trace collector, a gate
// engine, and a hook pipeline. No database, no model providers.
func testServer(t *testing.T) (*Server, *hooks.Registry) {
	t.Helper()

	hookRegistry := hooks.NewRegistry(nil)
	collector := trace.NewCollector(nil, nil)

	deps := Deps{
		Services: Services{
			Traces: services.NewTraceService(collector, nil, nil),
			Gates:  services.NewGateService(gate.NewEngine(nil), nil, nil, nil),
			Hooks:  services.NewHookService(hookRegistry, hooks.NewMetricsCollector(), nil),
		},
		PreHooks:  hooks.NewSequentialRunner(hookRegistry, nil),
		PostHooks: hooks.NewConcurrentRunner(hookRegistry, nil),
		Feed:      events.NewFeed(),
	}
	return NewServer(deps), hookRegistry
}

func doRequest(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestRequestPreHookAbortReturns403(t *testing.T) {
	s, hookRegistry := testServer(t)

	var postRan bool
	require.NoError(t, hookRegistry.Register(hooks.Hook{
		Name:     "blocker",
		Event:    hooks.EventRequestPre,
		Priority: 10,
		Enabled:  true,
		FailMode: hooks.FailOpen,
		Handler: func(ctx context.Context, hc *hooks.HookContext, next hooks.CallNext) error {
			hc.SetAbort("blocked_by_test")
			return nil
		},
	}))
	require.NoError(t, hookRegistry.Register(hooks.Hook{
		Name:     "post-observer",
		Event:    hooks.EventRequestPost,
		Priority: 10,
		Enabled:  true,
		FailMode: hooks.FailOpen,
		Handler: func(ctx context.Context, hc *hooks.HookContext, next hooks.CallNext) error {
			postRan = true
			return nil
		},
	}))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/traces", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "blocked_by_test")
	assert.False(t, postRan, "request.post hooks must not run for an aborted request")
}

func TestRequestPostHookRunsAfterHandler(t *testing.T) {
	s, hookRegistry := testServer(t)

	statusCh := make(chan int, 1)
	require.NoError(t, hookRegistry.Register(hooks.Hook{
		Name:     "status-observer",
		Event:    hooks.EventRequestPost,
		Priority: 10,
		Enabled:  true,
		FailMode: hooks.FailOpen,
		Handler: func(ctx context.Context, hc *hooks.HookContext, next hooks.CallNext) error {
			if v, ok := hc.Value(hooks.DataStatusCode); ok {
				statusCh <- v.(int)
			}
			return nil
		},
	}))

	rec := doRequest(t, s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case status := <-statusCh:
		assert.Equal(t, http.StatusOK, status)
	default:
		t.Fatal("request.post hook did not observe the response")
	}
}

func TestListTracesFiltersByTenant(t *testing.T) {
	collector := trace.NewCollector(nil, nil)
	s := NewServer(Deps{
		Services: Services{
			Traces: services.NewTraceService(collector, nil, nil),
		},
	})

	id1 := collector.StartTrace(trace.StartOptions{TenantID: "acme", TaskID: "t-1"})
	id2 := collector.StartTrace(trace.StartOptions{TenantID: "other", TaskID: "t-2"})
	require.NoError(t, collector.CompleteTrace(id1, models.TraceCompleted, "", ""))
	require.NoError(t, collector.CompleteTrace(id2, models.TraceCompleted, "", ""))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/traces", "", map[string]string{tenantHeader: "acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Traces []models.Trace `json:"traces"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "acme", resp.Traces[0].TenantID)
}

func TestGetTraceNotFound(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/traces/nonexistent", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvaluateGateWarns(t *testing.T) {
	s, _ := testServer(t)

	body := `{
		"version": "1.2.0",
		"gate": "G-PR",
		"metrics": {"M-01": 85.0, "M-03": 35.0, "M-05": 92.0}
	}`
	rec := doRequest(t, s, http.MethodPost, "/api/v1/gates/evaluate", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var release models.Release
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &release))
	require.NotNil(t, release.Report)
	assert.Equal(t, models.VerdictWarn, release.Report.Verdict)
	assert.Equal(t, models.ReleaseProposed, release.Status)
}

func TestEvaluateGateRejectsUnknownGate(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/gates/evaluate",
		`{"version": "1.0.0", "gate": "G-BOGUS"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHookAdminEnableDisable(t *testing.T) {
	s, hookRegistry := testServer(t)
	require.NoError(t, hookRegistry.Register(hooks.Hook{
		Name:     "audit",
		Event:    hooks.EventToolExecutePre,
		Priority: 100,
		Enabled:  true,
		FailMode: hooks.FailOpen,
		Handler: func(ctx context.Context, hc *hooks.HookContext, next hooks.CallNext) error {
			return next(ctx, hc)
		},
	}))

	rec := doRequest(t, s, http.MethodPost, "/api/v1/hooks/tool.execute.pre/audit/disable", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/hooks?event=tool.execute.pre", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Hooks []services.HookInfo `json:"hooks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Hooks, 1)
	assert.False(t, resp.Hooks[0].Enabled)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/hooks/tool.execute.pre/missing/enable", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurityHeadersSet(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
