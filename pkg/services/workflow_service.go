package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/queue"
	"github.com/praetorworks/praetor/pkg/workflow"
)

// WorkflowService owns the registered workflow definitions and drives
// their execution: it satisfies queue.Executor so the worker pool can
// hand it claimed jobs, and it feeds the cron scheduler for workflows
// with schedule triggers.
type WorkflowService struct {
	runner    *workflow.Runner
	queue     *queue.Queue
	scheduler *workflow.Scheduler
	defs      *database.DefinitionStore
	logger    *slog.Logger

	mu        sync.RWMutex
	workflows map[string]models.WorkflowDefinition
}

// NewWorkflowService builds the service. defs is optional; when set,
// registered definitions are also persisted.
func NewWorkflowService(runner *workflow.Runner, q *queue.Queue,
	defs *database.DefinitionStore, logger *slog.Logger) *WorkflowService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowService{
		runner:    runner,
		queue:     q,
		defs:      defs,
		logger:    logger.With("component", "workflow_service"),
		workflows: make(map[string]models.WorkflowDefinition),
	}
}

// BindScheduler attaches the cron scheduler. The scheduler is built
// around the service's own trigger callback, so wiring happens in two
// phases; any workflows registered before binding get their triggers
// registered now.
func (s *WorkflowService) BindScheduler(sched *workflow.Scheduler) error {
	s.mu.Lock()
	s.scheduler = sched
	defs := make([]models.WorkflowDefinition, 0, len(s.workflows))
	for _, def := range s.workflows {
		defs = append(defs, def)
	}
	s.mu.Unlock()

	for i := range defs {
		if err := sched.Register(&defs[i]); err != nil {
			return fmt.Errorf("failed to register triggers for workflow %q: %w", defs[i].Name, err)
		}
	}
	return nil
}

// Register validates and stores a workflow definition, replacing any
// previous version under the same name and re-wiring its schedule
// triggers.
func (s *WorkflowService) Register(ctx context.Context, def models.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	s.mu.Lock()
	s.workflows[def.Name] = def
	sched := s.scheduler
	s.mu.Unlock()

	if sched != nil {
		if err := sched.Register(&def); err != nil {
			return fmt.Errorf("failed to register triggers for workflow %q: %w", def.Name, err)
		}
	}
	if s.defs != nil {
		if err := s.defs.SaveWorkflow(ctx, def.TenantID, &def); err != nil {
			s.logger.Error("failed to persist workflow definition",
				"workflow", def.Name, "error", err)
		}
	}
	s.logger.Info("workflow registered", "workflow", def.Name, "version", def.Version)
	return nil
}

// Get returns one registered workflow definition by name.
func (s *WorkflowService) Get(name string) (models.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.workflows[name]
	if !ok {
		return models.WorkflowDefinition{}, fmt.Errorf("%w: workflow %q", ErrNotFound, name)
	}
	return def, nil
}

// List returns all registered definitions, sorted by name.
func (s *WorkflowService) List() []models.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WorkflowDefinition, 0, len(s.workflows))
	for _, def := range s.workflows {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EnqueueRun places one workflow run on the queue and returns the job ID.
func (s *WorkflowService) EnqueueRun(workflowName, tenantID string, inputs map[string]any) (string, error) {
	if _, err := s.Get(workflowName); err != nil {
		return "", err
	}
	jobID, err := s.queue.Enqueue(workflowName, tenantID, inputs)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue workflow %q: %w", workflowName, err)
	}
	return jobID, nil
}

// Execute runs one claimed job to completion. This is the queue.Executor
// entry point; the worker pool calls it with the job's own context so
// cancellation reaches the runner.
func (s *WorkflowService) Execute(ctx context.Context, job queue.Job) (workflow.RunResult, error) {
	def, err := s.Get(job.Workflow)
	if err != nil {
		return workflow.RunResult{}, err
	}
	inputs := job.Inputs
	if job.TenantID != "" {
		merged := make(map[string]any, len(inputs)+1)
		for k, v := range inputs {
			merged[k] = v
		}
		merged["tenant_id"] = job.TenantID
		inputs = merged
	}
	return s.runner.Execute(ctx, &def, inputs)
}

// Job returns the lifecycle record of one queued run.
func (s *WorkflowService) Job(jobID string) (queue.JobRecord, error) {
	rec, err := s.queue.Record(jobID)
	if err != nil {
		return queue.JobRecord{}, fmt.Errorf("%w: job %q", ErrNotFound, jobID)
	}
	return rec, nil
}

// Jobs lists queued and finished runs for a tenant.
func (s *WorkflowService) Jobs(tenantID string) []queue.JobRecord {
	return s.queue.List(tenantID)
}

// Graph computes the layer/position layout of a workflow's DAG for
// rendering.
func (s *WorkflowService) Graph(name string) ([]workflow.NodeLayout, error) {
	def, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	dag := workflow.NewDAG(def.Steps)
	layout, err := workflow.Layout(dag)
	if err != nil {
		return nil, fmt.Errorf("failed to lay out workflow %q: %w", name, err)
	}
	return layout, nil
}

// TriggerFunc returns the callback the scheduler fires for schedule
// triggers: it enqueues a run with the trigger recorded in the inputs.
func (s *WorkflowService) TriggerFunc() workflow.TriggerFunc {
	return func(workflowName string, trigger models.WorkflowTrigger) {
		def, err := s.Get(workflowName)
		if err != nil {
			s.logger.Warn("scheduled trigger for unknown workflow", "workflow", workflowName)
			return
		}
		jobID, err := s.queue.Enqueue(workflowName, def.TenantID, map[string]any{
			"trigger":  string(trigger.Type),
			"schedule": trigger.Schedule,
		})
		if err != nil {
			s.logger.Error("failed to enqueue scheduled run",
				"workflow", workflowName, "error", err)
			return
		}
		s.logger.Info("scheduled run enqueued", "workflow", workflowName, "job_id", jobID)
	}
}
