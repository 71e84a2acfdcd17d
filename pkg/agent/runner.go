package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/governance"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
)

// DefaultMaxConcurrentAgents caps simultaneous sub-agent runs per runner.
const DefaultMaxConcurrentAgents = 5

var (
	ErrMaxConcurrentAgents = errors.New("max concurrent agents reached")
	ErrRunnerClosed        = errors.New("runner is closed")
)

// DispatchResult is delivered on the results channel when a sub-agent
// finishes. Exactly one of Result and Err is meaningful.
type DispatchResult struct {
	DispatchID string
	AgentName  string
	Task       string
	Result     Result
	Err        error
}

type dispatchedRun struct {
	id        string
	agentName string
	task      string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Runner dispatches sub-agent runs as goroutines with push-based result
// delivery. Concurrency is capped; a slot is reserved atomically with the
// capacity check so racing Dispatch calls cannot both squeeze in.
type Runner struct {
	loop   *Loop
	agents *registry.AgentRegistry
	max    int

	mu       sync.Mutex
	active   map[string]*dispatchedRun
	reserved int
	closed   bool

	resultsCh chan DispatchResult
	pending   int32

	// parentCtx outlives individual dispatch calls; sub-agent contexts
	// derive from it, not from the caller's per-iteration context.
	parentCtx context.Context

	logger *slog.Logger
}

// NewRunner builds a sub-agent runner. maxConcurrent <= 0 takes the
// default cap.
func NewRunner(parentCtx context.Context, loop *Loop, agents *registry.AgentRegistry, maxConcurrent int, logger *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentAgents
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		loop:      loop,
		agents:    agents,
		max:       maxConcurrent,
		active:    make(map[string]*dispatchedRun),
		resultsCh: make(chan DispatchResult, maxConcurrent),
		parentCtx: parentCtx,
		logger:    logger.With("component", "agent_runner"),
	}
}

// Dispatch starts the named agent on a task and returns its dispatch ID
// immediately. The result arrives on Results when the run finishes.
func (r *Runner) Dispatch(agentName, task string, inputs map[string]any, caller governance.CallerContext) (string, error) {
	def, err := r.agents.Get(agentName)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRunnerClosed
	}
	if len(r.active)+r.reserved >= r.max {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: limit is %d", ErrMaxConcurrentAgents, r.max)
	}
	r.reserved++
	r.mu.Unlock()

	id := uuid.NewString()
	timeout := time.Duration(def.Constraints.TimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(r.parentCtx, timeout)

	run := &dispatchedRun{
		id:        id,
		agentName: agentName,
		task:      task,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.active[id] = run
	r.reserved--
	r.mu.Unlock()

	atomic.AddInt32(&r.pending, 1)
	go r.execute(runCtx, run, def, inputs, caller)
	return id, nil
}

func (r *Runner) execute(ctx context.Context, run *dispatchedRun, def *models.AgentDefinition, inputs map[string]any, caller governance.CallerContext) {
	defer run.cancel()
	defer close(run.done)

	result, err := r.loop.Run(ctx, RunInput{
		Agent:  def,
		Task:   run.task,
		Inputs: inputs,
		RunID:  run.id,
		Caller: caller,
	})
	if err != nil {
		r.logger.Warn("sub-agent run failed to start",
			"agent", run.agentName, "dispatch_id", run.id, "error", err)
	}

	r.mu.Lock()
	delete(r.active, run.id)
	closed := r.closed
	r.mu.Unlock()

	if closed {
		atomic.AddInt32(&r.pending, -1)
		return
	}
	r.resultsCh <- DispatchResult{
		DispatchID: run.id,
		AgentName:  run.agentName,
		Task:       run.task,
		Result:     result,
		Err:        err,
	}
}

// Results is the delivery channel for finished runs. Consume it or call
// WaitAll; each dispatch produces exactly one result unless CancelAll
// dropped it.
func (r *Runner) Results() <-chan DispatchResult {
	return r.resultsCh
}

// Pending reports runs whose results have not been consumed yet.
func (r *Runner) Pending() int {
	return int(atomic.LoadInt32(&r.pending))
}

// WaitAll drains results until every dispatched run has reported or the
// context expires.
func (r *Runner) WaitAll(ctx context.Context) []DispatchResult {
	var out []DispatchResult
	for atomic.LoadInt32(&r.pending) > 0 {
		select {
		case res := <-r.resultsCh:
			atomic.AddInt32(&r.pending, -1)
			out = append(out, res)
		case <-ctx.Done():
			return out
		}
	}
	return out
}

// Cancel aborts one in-flight run. Its result is still delivered, with
// the loop's cancellation reason.
func (r *Runner) Cancel(dispatchID string) bool {
	r.mu.Lock()
	run, ok := r.active[dispatchID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	run.cancel()
	return true
}

// CancelAll aborts every in-flight run and stops accepting dispatches.
// Results of cancelled runs are dropped, not delivered.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	r.closed = true
	runs := make([]*dispatchedRun, 0, len(r.active))
	for _, run := range r.active {
		runs = append(runs, run)
	}
	r.mu.Unlock()

	for _, run := range runs {
		run.cancel()
		<-run.done
	}
}
