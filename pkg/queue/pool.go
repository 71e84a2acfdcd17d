package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/praetorworks/praetor/pkg/workflow"
)

// Executor runs one claimed job to completion. The workflow service
// satisfies this: it resolves the definition and drives the runner.
type Executor interface {
	Execute(ctx context.Context, job Job) (workflow.RunResult, error)
}

// PoolHealth reports the pool's current state.
type PoolHealth struct {
	TotalWorkers  int            `json:"total_workers"`
	ActiveWorkers int            `json:"active_workers"`
	QueueDepth    int            `json:"queue_depth"`
	ActiveJobs    int            `json:"active_jobs"`
	Workers       []WorkerHealth `json:"workers"`
}

// WorkerHealth reports one worker's state.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Working       bool      `json:"working"`
	CurrentJobID  string    `json:"current_job_id,omitempty"`
	JobsProcessed int       `json:"jobs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}

type workerState struct {
	id            string
	working       bool
	currentJobID  string
	jobsProcessed int
	lastActivity  time.Time
}

// WorkerPool drains the run queue with a fixed set of workers. Workers
// finish their current job on Stop; in-flight jobs can be cancelled
// individually by job ID.
type WorkerPool struct {
	queue    *Queue
	executor Executor
	count    int

	mu        sync.Mutex
	workers   map[string]*workerState
	activeRun map[string]context.CancelFunc
	started   bool

	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewWorkerPool builds a stopped pool of workerCount workers.
func NewWorkerPool(queue *Queue, executor Executor, workerCount int, logger *slog.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		queue:     queue,
		executor:  executor,
		count:     workerCount,
		workers:   make(map[string]*workerState),
		activeRun: make(map[string]context.CancelFunc),
		logger:    logger.With("component", "worker_pool"),
	}
}

// Start spawns the workers. Safe to call once; repeat calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		p.logger.Warn("worker pool already started")
		return
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting worker pool", "workers", p.count)
	for i := 0; i < p.count; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.mu.Lock()
		p.workers[workerID] = &workerState{id: workerID, lastActivity: time.Now()}
		p.mu.Unlock()

		p.wg.Add(1)
		go p.runWorker(ctx, workerID)
	}
}

// Stop closes the queue and waits for workers to finish their current
// jobs. Queued-but-unclaimed jobs are drained before workers exit.
func (p *WorkerPool) Stop() {
	p.logger.Info("stopping worker pool")
	p.queue.Close()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Cancel aborts one in-flight job. Returns false when the job is not
// currently running on this pool.
func (p *WorkerPool) Cancel(jobID string) bool {
	p.mu.Lock()
	cancel, ok := p.activeRun[jobID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Health snapshots the pool.
func (p *WorkerPool) Health() PoolHealth {
	p.mu.Lock()
	defer p.mu.Unlock()
	health := PoolHealth{
		TotalWorkers: len(p.workers),
		QueueDepth:   p.queue.Depth(),
		ActiveJobs:   len(p.activeRun),
	}
	for _, w := range p.workers {
		if w.working {
			health.ActiveWorkers++
		}
		health.Workers = append(health.Workers, WorkerHealth{
			ID:            w.id,
			Working:       w.working,
			CurrentJobID:  w.currentJobID,
			JobsProcessed: w.jobsProcessed,
			LastActivity:  w.lastActivity,
		})
	}
	return health
}

func (p *WorkerPool) runWorker(ctx context.Context, workerID string) {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.queue.claim():
			if !ok {
				return
			}
			p.process(ctx, workerID, job)
		case <-ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) process(ctx context.Context, workerID string, job Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.activeRun[job.ID] = cancel
	if w := p.workers[workerID]; w != nil {
		w.working = true
		w.currentJobID = job.ID
		w.lastActivity = time.Now()
	}
	p.mu.Unlock()
	p.queue.markRunning(job.ID)

	p.logger.Info("job claimed",
		"worker", workerID, "job_id", job.ID, "workflow", job.Workflow)

	result, err := p.executor.Execute(jobCtx, job)

	status := JobCompleted
	errText := ""
	switch {
	case jobCtx.Err() != nil && ctx.Err() == nil:
		status = JobCancelled
		errText = "cancelled"
	case err != nil:
		status = JobFailed
		errText = err.Error()
	case result.Status == workflow.StepFailed:
		status = JobFailed
		errText = "workflow run failed"
	}
	p.queue.markDone(job.ID, status, result.RunID, errText)

	p.mu.Lock()
	delete(p.activeRun, job.ID)
	if w := p.workers[workerID]; w != nil {
		w.working = false
		w.currentJobID = ""
		w.jobsProcessed++
		w.lastActivity = time.Now()
	}
	p.mu.Unlock()

	p.logger.Info("job finished",
		"worker", workerID, "job_id", job.ID, "status", string(status))
}
