package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/queue"
	"github.com/praetorworks/praetor/pkg/workflow"
)

func newWorkflowService(t *testing.T) (*WorkflowService, *queue.Queue) {
	t.Helper()
	adapters := workflow.NewAdapters(nil, nil, nil)
	runner := workflow.NewRunner(adapters, nil, nil, nil, nil)
	q := queue.NewQueue(8, nil)
	t.Cleanup(q.Close)
	return NewWorkflowService(runner, q, nil, nil), q
}

func greetWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:    "greet",
		Version: "1.0.0",
		Steps: []models.WorkflowStep{
			{
				ID:     "render",
				Action: models.ActionTransform,
				Inputs: map[string]any{"template": "hello {{.name}}"},
			},
		},
		Execution: models.ExecutionConfig{Mode: models.ModeSequential, TimeoutSeconds: 30},
	}
}

func TestWorkflowService_RegisterAndGet(t *testing.T) {
	svc, _ := newWorkflowService(t)

	require.NoError(t, svc.Register(context.Background(), greetWorkflow()))

	def, err := svc.Get("greet")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", def.Version)

	_, err = svc.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowService_RegisterInvalid(t *testing.T) {
	svc, _ := newWorkflowService(t)

	err := svc.Register(context.Background(), models.WorkflowDefinition{Name: "empty", Version: "1.0.0"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWorkflowService_ListSorted(t *testing.T) {
	svc, _ := newWorkflowService(t)

	zulu := greetWorkflow()
	zulu.Name = "zulu"
	require.NoError(t, svc.Register(context.Background(), zulu))
	require.NoError(t, svc.Register(context.Background(), greetWorkflow()))

	defs := svc.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "greet", defs[0].Name)
	assert.Equal(t, "zulu", defs[1].Name)
}

func TestWorkflowService_EnqueueRun(t *testing.T) {
	svc, _ := newWorkflowService(t)
	require.NoError(t, svc.Register(context.Background(), greetWorkflow()))

	_, err := svc.EnqueueRun("missing", "acme", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	jobID, err := svc.EnqueueRun("greet", "acme", map[string]any{"name": "praetor"})
	require.NoError(t, err)

	rec, err := svc.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobQueued, rec.Status)
	assert.Equal(t, "greet", rec.Job.Workflow)

	assert.Len(t, svc.Jobs("acme"), 1)
}

func TestWorkflowService_ExecuteJob(t *testing.T) {
	svc, _ := newWorkflowService(t)
	require.NoError(t, svc.Register(context.Background(), greetWorkflow()))

	result, err := svc.Execute(context.Background(), queue.Job{
		ID:       "job-1",
		Workflow: "greet",
		TenantID: "acme",
		Inputs:   map[string]any{"name": "praetor"},
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StepSuccess, result.Status)

	step, ok := result.Steps["render"]
	require.True(t, ok)
	assert.Equal(t, "hello praetor", step.Outputs["output"])
}

func TestWorkflowService_ExecuteUnknownWorkflow(t *testing.T) {
	svc, _ := newWorkflowService(t)

	_, err := svc.Execute(context.Background(), queue.Job{ID: "job-1", Workflow: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowService_Graph(t *testing.T) {
	svc, _ := newWorkflowService(t)

	def := greetWorkflow()
	def.Steps = append(def.Steps, models.WorkflowStep{
		ID:        "shout",
		Action:    models.ActionTransform,
		Inputs:    map[string]any{"template": "{{.render.output}}!"},
		DependsOn: []string{"render"},
	})
	require.NoError(t, svc.Register(context.Background(), def))

	layout, err := svc.Graph("greet")
	require.NoError(t, err)
	require.Len(t, layout, 2)
	assert.Less(t, layout[0].Layer, layout[1].Layer)
}

func TestWorkflowService_TriggerEnqueues(t *testing.T) {
	svc, q := newWorkflowService(t)
	require.NoError(t, svc.Register(context.Background(), greetWorkflow()))

	fire := svc.TriggerFunc()
	fire("greet", models.WorkflowTrigger{Type: models.TriggerSchedule, Schedule: "@hourly"})
	assert.Equal(t, 1, q.Depth())

	// Unknown workflows are dropped, not enqueued.
	fire("missing", models.WorkflowTrigger{Type: models.TriggerSchedule, Schedule: "@hourly"})
	assert.Equal(t, 1, q.Depth())
}
