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

func TestConcurrentRunner_RunsAllEnabledHooks(t *testing.T) {
	r := NewRegistry(nil)
	var ran atomic.Int32
	for _, name := range []string{"exporter", "archiver", "notifier"} {
		require.NoError(t, r.Register(Hook{
			Name: name, Event: EventToolExecutePost, Priority: 10, Enabled: true,
			Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
				ran.Add(1)
				return next(ctx, hc)
			},
		}))
	}
	off := testHook("off", EventToolExecutePost, 20)
	off.Enabled = false
	require.NoError(t, r.Register(off))

	hc := NewHookContext(EventToolExecutePost, "", nil)
	NewConcurrentRunner(r, nil).Run(context.Background(), hc)

	assert.Equal(t, int32(3), ran.Load())
	assert.Len(t, hc.Results(), 3)
}

func TestConcurrentRunner_NeverAborts(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Hook{
		Name: "failing", Event: EventRequestPost, Priority: 10, Enabled: true,
		FailMode: FailClosed,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			return errors.New("sink unavailable")
		},
	}))
	var ran atomic.Int32
	require.NoError(t, r.Register(Hook{
		Name: "healthy", Event: EventRequestPost, Priority: 20, Enabled: true,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			ran.Add(1)
			return nil
		},
	}))

	hc := NewHookContext(EventRequestPost, "", nil)
	NewConcurrentRunner(r, nil).Run(context.Background(), hc)

	aborted, _ := hc.Aborted()
	assert.False(t, aborted, "post-processing never aborts, fail mode notwithstanding")
	assert.Equal(t, int32(1), ran.Load())

	byName := map[string]HookResult{}
	for _, res := range hc.Results() {
		byName[res.HookName] = res
	}
	require.Len(t, byName, 2)
	assert.False(t, byName["failing"].Success)
	assert.Contains(t, byName["failing"].Error, "sink unavailable")
	assert.True(t, byName["healthy"].Success)
}

func TestConcurrentRunner_TimeoutApplies(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Hook{
		Name: "sluggish", Event: EventAgentInvokePost, Priority: 10, Enabled: true,
		Timeout: 20 * time.Millisecond,
		Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
			select {
			case <-time.After(500 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}))

	hc := NewHookContext(EventAgentInvokePost, "", nil)
	start := time.Now()
	NewConcurrentRunner(r, nil).Run(context.Background(), hc)

	assert.Less(t, time.Since(start), 400*time.Millisecond, "the deadline cuts the hook short")
	results := hc.Results()
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "timed out")
}

func TestConcurrentRunner_SharedContextWrites(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, r.Register(Hook{
			Name: name, Event: EventWorkflowStepPost, Priority: 10, Enabled: true,
			Handler: func(ctx context.Context, hc *HookContext, next CallNext) error {
				hc.SetValue(name, true)
				return nil
			},
		}))
	}

	hc := NewHookContext(EventWorkflowStepPost, "", nil)
	NewConcurrentRunner(r, nil).Run(context.Background(), hc)

	for _, name := range []string{"a", "b", "c", "d"} {
		_, ok := hc.Value(name)
		assert.True(t, ok, name)
	}
}
