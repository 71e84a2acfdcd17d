// Package queue provides the in-memory run queue and the worker pool
// that drains it: enqueued workflow runs are claimed by workers,
// executed through the workflow runner, and tracked to a terminal
// status with support for cancellation mid-run.
package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/events"
)

// Sentinel errors for queue operations.
var (
	ErrQueueFull   = errors.New("run queue is full")
	ErrQueueClosed = errors.New("run queue is closed")
	ErrJobNotFound = errors.New("job not found")
)

// DefaultCapacity bounds pending jobs when the queue is built with no
// explicit capacity.
const DefaultCapacity = 256

// JobStatus is the lifecycle state of one queued run.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status ends a job.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is one enqueued workflow run.
type Job struct {
	ID         string         `json:"id"`
	Workflow   string         `json:"workflow"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// JobRecord tracks a job through its lifecycle.
type JobRecord struct {
	Job         Job        `json:"job"`
	Status      JobStatus  `json:"status"`
	RunID       string     `json:"run_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Queue is a bounded FIFO of workflow runs. Enqueue never blocks; a full
// queue rejects with ErrQueueFull so callers can push back.
type Queue struct {
	mu      sync.Mutex
	jobs    chan Job
	records map[string]*JobRecord
	closed  bool

	bus *events.Bus
	now func() time.Time
}

// NewQueue builds an empty queue. capacity <= 0 takes the default.
func NewQueue(capacity int, bus *events.Bus) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		jobs:    make(chan Job, capacity),
		records: make(map[string]*JobRecord),
		bus:     bus,
		now:     time.Now,
	}
}

// SetClock overrides the time source for tests.
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue adds a run to the queue and returns its job ID.
func (q *Queue) Enqueue(workflowName, tenantID string, inputs map[string]any) (string, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	job := Job{
		ID:         uuid.NewString(),
		Workflow:   workflowName,
		TenantID:   tenantID,
		Inputs:     inputs,
		EnqueuedAt: q.now(),
	}
	select {
	case q.jobs <- job:
	default:
		q.mu.Unlock()
		return "", ErrQueueFull
	}
	q.records[job.ID] = &JobRecord{Job: job, Status: JobQueued}
	q.mu.Unlock()

	if q.bus != nil {
		q.bus.Publish(events.Event{
			Type:      events.EventTypeRunQueued,
			Channel:   events.GlobalChannel,
			TenantID:  tenantID,
			Payload:   map[string]any{"job_id": job.ID, "workflow": workflowName},
			Timestamp: job.EnqueuedAt,
		})
	}
	return job.ID, nil
}

// claim hands workers the job channel to receive from.
func (q *Queue) claim() <-chan Job {
	return q.jobs
}

// Close stops intake. Already-queued jobs still drain.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

// Depth is the number of jobs waiting to be claimed.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Record returns a copy of one job's tracking record.
func (q *Queue) Record(jobID string) (JobRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[jobID]
	if !ok {
		return JobRecord{}, ErrJobNotFound
	}
	return *rec, nil
}

// List returns records, optionally filtered by tenant, newest first.
func (q *Queue) List(tenantID string) []JobRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]JobRecord, 0, len(q.records))
	for _, rec := range q.records {
		if tenantID != "" && rec.Job.TenantID != tenantID {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// markRunning transitions a claimed job to running.
func (q *Queue) markRunning(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rec, ok := q.records[jobID]; ok {
		now := q.now()
		rec.Status = JobRunning
		rec.StartedAt = &now
	}
}

// markDone records a job's terminal state.
func (q *Queue) markDone(jobID string, status JobStatus, runID, errText string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[jobID]
	if !ok || rec.Status.IsTerminal() {
		return
	}
	now := q.now()
	rec.Status = status
	rec.RunID = runID
	rec.Error = errText
	rec.CompletedAt = &now
}

// Evict drops terminal records completed before the cutoff, returning
// how many were removed.
func (q *Queue) Evict(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, rec := range q.records {
		if rec.Status.IsTerminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff) {
			delete(q.records, id)
			removed++
		}
	}
	return removed
}
