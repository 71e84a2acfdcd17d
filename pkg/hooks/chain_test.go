package hooks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderHook appends its name before handing off downstream.
func orderHook(name string, priority int, order *[]string) Hook {
	return Hook{
		Name:     name,
		Event:    EventToolExecutePre,
		Priority: priority,
		Enabled:  true,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			*order = append(*order, name)
			return next(ctx, hc)
		},
	}
}

func TestSequentialRunner_PriorityOrder(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	require.NoError(t, r.Register(orderHook("late", 900, &order)))
	require.NoError(t, r.Register(orderHook("early", 10, &order)))
	require.NoError(t, r.Register(orderHook("middle", 400, &order)))

	hc := NewHookContext(EventToolExecutePre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	assert.Equal(t, []string{"early", "middle", "late"}, order)
	assert.Len(t, hc.Results(), 3)
	aborted, _ := hc.Aborted()
	assert.False(t, aborted)
}

func TestSequentialRunner_DisabledHooksLeftOut(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	require.NoError(t, r.Register(orderHook("on", 10, &order)))
	off := orderHook("off", 20, &order)
	off.Enabled = false
	require.NoError(t, r.Register(off))

	hc := NewHookContext(EventToolExecutePre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	assert.Equal(t, []string{"on"}, order)
	require.Len(t, hc.Results(), 1)
	assert.Equal(t, "on", hc.Results()[0].HookName)
}

func TestSequentialRunner_HookWithoutNextStopsChain(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	terminal := Hook{
		Name: "terminal", Event: EventToolExecutePre, Priority: 10, Enabled: true,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			order = append(order, "terminal")
			return nil
		},
	}
	require.NoError(t, r.Register(terminal))
	require.NoError(t, r.Register(orderHook("unreached", 20, &order)))

	hc := NewHookContext(EventToolExecutePre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	assert.Equal(t, []string{"terminal"}, order)
	assert.Len(t, hc.Results(), 1, "hooks never attempted produce no result entries")
}

func TestSequentialRunner_AbortShortCircuits(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	aborter := Hook{
		Name: "gatekeeper", Event: EventRequestPre, Priority: 10, Enabled: true,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			hc.SetAbort("blocked_by_test")
			return next(ctx, hc)
		},
	}
	require.NoError(t, r.Register(aborter))
	downstream := orderHook("downstream", 20, &order)
	downstream.Event = EventRequestPre
	require.NoError(t, r.Register(downstream))

	hc := NewHookContext(EventRequestPre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	aborted, reason := hc.Aborted()
	assert.True(t, aborted)
	assert.Equal(t, "blocked_by_test", reason)
	assert.Empty(t, order, "downstream sees the abort flag and returns unchanged")
	assert.Len(t, hc.Results(), 1, "only the aborting hook was attempted")
}

func TestSequentialRunner_FailOpenSkips(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	broken := Hook{
		Name: "broken", Event: EventToolExecutePre, Priority: 10, Enabled: true,
		FailMode: FailOpen,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			return errors.New("backend unreachable")
		},
	}
	require.NoError(t, r.Register(broken))
	require.NoError(t, r.Register(orderHook("survivor", 20, &order)))

	hc := NewHookContext(EventToolExecutePre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	assert.Equal(t, []string{"survivor"}, order, "fail-open skips to the rest of the chain")
	aborted, _ := hc.Aborted()
	assert.False(t, aborted)

	results := hc.Results()
	require.Len(t, results, 2)
	byName := map[string]HookResult{}
	for _, res := range results {
		byName[res.HookName] = res
	}
	assert.False(t, byName["broken"].Success)
	assert.Contains(t, byName["broken"].Error, "backend unreachable")
	assert.True(t, byName["survivor"].Success)
}

func TestSequentialRunner_FailClosedAborts(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	strict := Hook{
		Name: "strict", Event: EventToolExecutePre, Priority: 10, Enabled: true,
		FailMode: FailClosed,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			return errors.New("policy backend down")
		},
	}
	require.NoError(t, r.Register(strict))
	require.NoError(t, r.Register(orderHook("unreached", 20, &order)))

	hc := NewHookContext(EventToolExecutePre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	aborted, reason := hc.Aborted()
	assert.True(t, aborted)
	assert.Contains(t, reason, "strict")
	assert.Contains(t, reason, "policy backend down")
	assert.Empty(t, order)
	assert.Len(t, hc.Results(), 1)
}

func TestSequentialRunner_TimeoutFailsHook(t *testing.T) {
	r := NewRegistry(nil)
	var downstream atomic.Int32
	slow := Hook{
		Name: "slow", Event: EventToolExecutePre, Priority: 10, Enabled: true,
		FailMode: FailOpen,
		Timeout:  20 * time.Millisecond,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			return next(ctx, hc)
		},
	}
	require.NoError(t, r.Register(slow))
	counter := Hook{
		Name: "counter", Event: EventToolExecutePre, Priority: 20, Enabled: true,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			downstream.Add(1)
			return next(ctx, hc)
		},
	}
	require.NoError(t, r.Register(counter))

	hc := NewHookContext(EventToolExecutePre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	assert.Equal(t, int32(1), downstream.Load(), "downstream runs exactly once after a timeout skip")

	results := hc.Results()
	require.Len(t, results, 2)
	assert.False(t, results[0].Success, "the failed hook records before skipping downstream")
	assert.Contains(t, results[0].Error, "timed out")
}

func TestSequentialRunner_PanicBecomesError(t *testing.T) {
	r := NewRegistry(nil)
	panicky := Hook{
		Name: "panicky", Event: EventAgentInvokePre, Priority: 10, Enabled: true,
		FailMode: FailOpen,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			panic("boom")
		},
	}
	require.NoError(t, r.Register(panicky))

	hc := NewHookContext(EventAgentInvokePre, "", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	results := hc.Results()
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "panicked")
}

func TestSequentialRunner_TenantScopedChain(t *testing.T) {
	r := NewRegistry(nil)
	var order []string
	system := orderHook("system", 10, &order)
	require.NoError(t, r.Register(system))
	tenant := orderHook("acme", 20, &order)
	tenant.TenantID = "acme"
	require.NoError(t, r.Register(tenant))
	other := orderHook("globex", 30, &order)
	other.TenantID = "globex"
	require.NoError(t, r.Register(other))

	hc := NewHookContext(EventToolExecutePre, "acme", nil)
	NewSequentialRunner(r, nil).Run(context.Background(), hc)

	assert.Equal(t, []string{"system", "acme"}, order)
}
