package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praetorworks/praetor/pkg/hooks"
)

// Metrics is the engine's Prometheus instrumentation. All metrics carry
// the praetor_ prefix; counters end in _total, duration histograms in
// _seconds.
type Metrics struct {
	registry *prometheus.Registry

	AgentRuns        *prometheus.CounterVec
	AgentRunDuration *prometheus.HistogramVec
	LoopIterations   *prometheus.CounterVec
	ToolExecutions   *prometheus.CounterVec
	GovernanceDenies *prometheus.CounterVec
	Escalations      *prometheus.CounterVec
	WorkflowRuns     *prometheus.CounterVec
	WorkflowDuration *prometheus.HistogramVec
	HookExecutions   *prometheus.CounterVec
	HookDuration     *prometheus.HistogramVec
	GateEvaluations  *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	ActiveRuns       prometheus.Gauge
}

// NewMetrics builds and registers all engine metrics on a fresh
// registry, alongside the standard Go and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		AgentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_agent_runs_total",
			Help: "Agent invocations by agent and termination reason.",
		}, []string{"agent", "reason"}),
		AgentRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "praetor_agent_run_duration_seconds",
			Help:    "Duration of agent invocations.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"agent"}),
		LoopIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_loop_iterations_total",
			Help: "Reasoning loop iterations across all runs.",
		}, []string{"agent"}),
		ToolExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_tool_executions_total",
			Help: "Tool executions by tool and outcome.",
		}, []string{"tool", "status"}),
		GovernanceDenies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_governance_denials_total",
			Help: "Tool calls denied by governance, by tool and rule.",
		}, []string{"tool", "rule"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_escalations_total",
			Help: "Autonomy escalations by urgency.",
		}, []string{"urgency"}),
		WorkflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_workflow_runs_total",
			Help: "Workflow runs by workflow and status.",
		}, []string{"workflow", "status"}),
		WorkflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "praetor_workflow_run_duration_seconds",
			Help:    "Duration of workflow runs.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		}, []string{"workflow"}),
		HookExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_hook_executions_total",
			Help: "Hook chain executions by event type.",
		}, []string{"event"}),
		HookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "praetor_hook_duration_seconds",
			Help:    "Duration of hook chain executions.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"event"}),
		GateEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "praetor_gate_evaluations_total",
			Help: "Gate evaluations by gate and verdict.",
		}, []string{"gate", "verdict"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "praetor_queue_depth",
			Help: "Workflow runs waiting in the queue.",
		}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "praetor_active_runs",
			Help: "Workflow runs currently executing.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AgentRuns, m.AgentRunDuration, m.LoopIterations,
		m.ToolExecutions, m.GovernanceDenies, m.Escalations,
		m.WorkflowRuns, m.WorkflowDuration,
		m.HookExecutions, m.HookDuration,
		m.GateEvaluations, m.QueueDepth, m.ActiveRuns,
	)
	return m
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HookObserver adapts the hook pipeline's builtin metrics collector to
// this registry; pass it to MetricsCollector.WithObserver.
func (m *Metrics) HookObserver() func(hooks.EventType, time.Duration) {
	return func(event hooks.EventType, d time.Duration) {
		m.HookExecutions.WithLabelValues(string(event)).Inc()
		m.HookDuration.WithLabelValues(string(event)).Observe(d.Seconds())
	}
}

// RecordAgentRun records one completed agent invocation.
func (m *Metrics) RecordAgentRun(agent, reason string, duration time.Duration, iterations int) {
	m.AgentRuns.WithLabelValues(agent, reason).Inc()
	m.AgentRunDuration.WithLabelValues(agent).Observe(duration.Seconds())
	m.LoopIterations.WithLabelValues(agent).Add(float64(iterations))
}

// RecordWorkflowRun records one completed workflow run.
func (m *Metrics) RecordWorkflowRun(workflow, status string, duration time.Duration) {
	m.WorkflowRuns.WithLabelValues(workflow, status).Inc()
	m.WorkflowDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}
