package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/hooks"
)

func noopHook(name string, event hooks.EventType) hooks.Hook {
	return hooks.Hook{
		Name:     name,
		Event:    event,
		Priority: 100,
		Enabled:  true,
		FailMode: hooks.FailOpen,
		Handler: func(ctx context.Context, hc *hooks.HookContext, next hooks.CallNext) error {
			return nil
		},
	}
}

func TestHookService_InstallBuiltins(t *testing.T) {
	registry := hooks.NewRegistry(nil)
	svc := NewHookService(registry, hooks.NewMetricsCollector(), nil)

	require.NoError(t, svc.InstallBuiltins())

	// Metrics and audit on every lifecycle event, metrics first.
	listed := svc.List(hooks.EventAgentInvokePre, "")
	require.Len(t, listed, 2)
	assert.Equal(t, "builtin.metrics", listed[0].Name)
	assert.Equal(t, "builtin.audit", listed[1].Name)
	assert.Equal(t, 2, registry.Count(hooks.EventRequestPost))
}

func TestHookService_RegisterErrors(t *testing.T) {
	svc := NewHookService(hooks.NewRegistry(nil), nil, nil)

	require.NoError(t, svc.Register(noopHook("guard", hooks.EventToolExecutePre)))

	err := svc.Register(noopHook("guard", hooks.EventToolExecutePre))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = svc.Register(noopHook("bad", "no.such.event"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := noopHook("late", hooks.EventToolExecutePre)
	bad.Priority = 5000
	assert.ErrorIs(t, svc.Register(bad), ErrInvalidInput)
}

func TestHookService_EnableDisableUnregister(t *testing.T) {
	svc := NewHookService(hooks.NewRegistry(nil), nil, nil)
	require.NoError(t, svc.Register(noopHook("guard", hooks.EventToolExecutePre)))

	require.NoError(t, svc.SetEnabled(hooks.EventToolExecutePre, "guard", false))
	listed := svc.List(hooks.EventToolExecutePre, "")
	require.Len(t, listed, 1)
	assert.False(t, listed[0].Enabled)

	assert.ErrorIs(t, svc.SetEnabled(hooks.EventToolExecutePre, "missing", true), ErrNotFound)

	require.NoError(t, svc.Unregister(hooks.EventToolExecutePre, "guard"))
	assert.ErrorIs(t, svc.Unregister(hooks.EventToolExecutePre, "guard"), ErrNotFound)
}

func TestHookService_StatsThroughRunner(t *testing.T) {
	registry := hooks.NewRegistry(nil)
	metrics := hooks.NewMetricsCollector()
	svc := NewHookService(registry, metrics, nil)
	require.NoError(t, svc.InstallBuiltins())

	runner := hooks.NewSequentialRunner(registry, nil)
	hc := hooks.NewHookContext(hooks.EventAgentInvokePre, "acme", nil)
	runner.Run(context.Background(), hc)

	stats, ok := svc.Stats(hooks.EventAgentInvokePre)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Count)
}

func TestHookService_StatsWithoutCollector(t *testing.T) {
	svc := NewHookService(hooks.NewRegistry(nil), nil, nil)

	_, ok := svc.Stats(hooks.EventRequestPre)
	assert.False(t, ok)
}
