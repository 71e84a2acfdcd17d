package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SequentialRunner executes a pre-event chain: hooks wrap each other
// inside-out so each one decides whether and when the downstream runs.
// The outcome lives on the context: abort flag, abort reason, and one
// result entry per attempted enabled hook.
type SequentialRunner struct {
	registry *Registry
	logger   *slog.Logger
}

// NewSequentialRunner returns a runner over the given registry.
func NewSequentialRunner(registry *Registry, logger *slog.Logger) *SequentialRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SequentialRunner{
		registry: registry,
		logger:   logger.With("component", "hook_chain"),
	}
}

// Run builds the middleware chain for the context's event and tenant
// and executes it. Disabled hooks are left out of the chain entirely.
func (r *SequentialRunner) Run(ctx context.Context, hc *HookContext) {
	hooks := r.registry.HooksFor(hc.Event, hc.TenantID)

	// Innermost delegate is a terminal pass-through. Hooks are wrapped
	// in reverse so the lowest priority ends up outermost and runs
	// first.
	next := CallNext(func(context.Context, *HookContext) error { return nil })
	for i := len(hooks) - 1; i >= 0; i-- {
		if !hooks[i].Enabled {
			continue
		}
		next = r.wrap(hooks[i], onceNext(next))
	}
	_ = next(ctx, hc)
}

// wrap turns one hook into a chain link.
func (r *SequentialRunner) wrap(h Hook, next CallNext) CallNext {
	return func(ctx context.Context, hc *HookContext) error {
		if aborted, _ := hc.Aborted(); aborted {
			return nil
		}

		start := time.Now()
		err := runHook(ctx, h, hc, next)

		result := HookResult{HookName: h.Name, Success: err == nil, DurationMS: time.Since(start).Milliseconds()}
		if err != nil {
			result.Error = err.Error()
		}
		hc.AddResult(result)

		if err == nil {
			return nil
		}
		switch h.FailMode {
		case FailClosed:
			hc.SetAbort(fmt.Sprintf("hook %s failed: %v", h.Name, err))
			r.logger.Error("hook failed closed, aborting",
				"event", hc.Event, "hook", h.Name, "error", err)
			return nil
		default:
			r.logger.Warn("hook failed open, skipping",
				"event", hc.Event, "hook", h.Name, "error", err)
			return next(ctx, hc)
		}
	}
}

// onceNext guards a delegate so the downstream runs at most once. A
// timed-out hook's goroutine may still call next after the runner has
// already skipped past it; the guard makes that late call a no-op.
func onceNext(next CallNext) CallNext {
	var once sync.Once
	var err error
	return func(ctx context.Context, hc *HookContext) error {
		once.Do(func() { err = next(ctx, hc) })
		return err
	}
}

// runHook executes one handler under its per-hook deadline, converting
// panics and timeouts into errors.
func runHook(ctx context.Context, h Hook, hc *HookContext, next CallNext) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}
	if timeout > MaxHookTimeout {
		timeout = MaxHookTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("hook panicked: %v", rec)
			}
		}()
		done <- h.Handler(hctx, hc, next)
	}()

	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		return fmt.Errorf("hook timed out after %s", timeout)
	}
}
