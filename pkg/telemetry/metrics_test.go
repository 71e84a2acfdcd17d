package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/hooks"
)

func TestMetricsEndpointServesRegisteredMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordAgentRun("builder", "completed", 2*time.Second, 3)
	m.RecordWorkflowRun("deploy", "success", 5*time.Second)
	m.GovernanceDenies.WithLabelValues("shell", "command_allowlist").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `praetor_agent_runs_total{agent="builder",reason="completed"} 1`)
	assert.Contains(t, body, `praetor_workflow_runs_total{status="success",workflow="deploy"} 1`)
	assert.Contains(t, body, `praetor_governance_denials_total{rule="command_allowlist",tool="shell"} 1`)
	assert.Contains(t, body, "praetor_loop_iterations_total")
}

func TestHookObserverFeedsRegistry(t *testing.T) {
	m := NewMetrics()
	observe := m.HookObserver()
	observe(hooks.EventRequestPre, 10*time.Millisecond)
	observe(hooks.EventRequestPre, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `praetor_hook_executions_total{event="request.pre"} 2`)
}
