package hooks

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ConcurrentRunner fans out independent post-processing hooks. All
// enabled hooks run in parallel with the same per-hook deadline
// semantics as the chain, every attempt is recorded, and the runner
// never aborts: a failing post hook is an observability problem, not a
// reason to fail the operation it observed.
type ConcurrentRunner struct {
	registry *Registry
	logger   *slog.Logger
}

// NewConcurrentRunner returns a runner over the given registry.
func NewConcurrentRunner(registry *Registry, logger *slog.Logger) *ConcurrentRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConcurrentRunner{
		registry: registry,
		logger:   logger.With("component", "hook_fanout"),
	}
}

// Run executes all enabled hooks for the context's event in parallel
// and waits for them. Each hook receives a no-op call_next.
func (r *ConcurrentRunner) Run(ctx context.Context, hc *HookContext) {
	noop := CallNext(func(context.Context, *HookContext) error { return nil })

	var g errgroup.Group
	for _, h := range r.registry.HooksFor(hc.Event, hc.TenantID) {
		if !h.Enabled {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			err := runHook(ctx, h, hc, noop)

			result := HookResult{HookName: h.Name, Success: err == nil, DurationMS: time.Since(start).Milliseconds()}
			if err != nil {
				result.Error = err.Error()
			}
			hc.AddResult(result)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("post-processing hook failed", "event", hc.Event, "error", err)
	}
}
