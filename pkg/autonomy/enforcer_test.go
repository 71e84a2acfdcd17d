package autonomy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/models"
)

func newTestEnforcer(bus *events.Bus) *Enforcer {
	e := NewEnforcer(bus, nil)
	e.SetClock(func() time.Time {
		return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	})
	return e
}

func enforcedBudget(stop models.StopAction) *models.AutonomyBudget {
	b := readyBudget()
	b.StopConditions = []models.StopCondition{{Description: "any limit reached", Action: stop}}
	b.Limits = models.ResourceLimits{
		MaxIterations:      5,
		MaxDurationMinutes: 30,
		MaxFilesModified:   3,
		MaxLinesChanged:    100,
		MaxToolCalls:       8,
	}
	b.Network.MaxRequests = 2
	return &b
}

func TestEnforcer_CheckBeforeToolCall_UnderLimits(t *testing.T) {
	en := newTestEnforcer(nil)
	b := enforcedBudget(models.StopActionStop)
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC))
	ec.RecordIteration()
	ec.RecordToolCall()

	require.NoError(t, en.CheckBeforeToolCall(b, ec))
	stopped, _ := ec.IsStopped()
	assert.False(t, stopped)
}

func TestEnforcer_CheckBeforeToolCall_EachLimit(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC)

	tests := []struct {
		name     string
		consume  func(ec *models.EnforcementContext)
		fragment string
	}{
		{
			name: "iterations",
			consume: func(ec *models.EnforcementContext) {
				for i := 0; i < 5; i++ {
					ec.RecordIteration()
				}
			},
			fragment: "max_iterations",
		},
		{
			name: "tool calls",
			consume: func(ec *models.EnforcementContext) {
				for i := 0; i < 8; i++ {
					ec.RecordToolCall()
				}
			},
			fragment: "max_tool_calls",
		},
		{
			name: "files modified",
			consume: func(ec *models.EnforcementContext) {
				for i := 0; i < 3; i++ {
					ec.RecordFileModified(1)
				}
			},
			fragment: "max_files_modified",
		},
		{
			name: "lines changed",
			consume: func(ec *models.EnforcementContext) {
				ec.RecordFileModified(100)
			},
			fragment: "max_lines_changed",
		},
		{
			name: "network requests",
			consume: func(ec *models.EnforcementContext) {
				ec.RecordNetworkRequest()
				ec.RecordNetworkRequest()
			},
			fragment: "max_network_requests",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			en := newTestEnforcer(nil)
			b := enforcedBudget(models.StopActionStop)
			ec := models.NewEnforcementContext(b.ID, start)
			tt.consume(ec)

			err := en.CheckBeforeToolCall(b, ec)
			require.ErrorIs(t, err, ErrBudgetExceeded)
			assert.Contains(t, err.Error(), tt.fragment)

			stopped, reason := ec.IsStopped()
			assert.True(t, stopped)
			assert.Contains(t, reason, tt.fragment)
			require.NotEmpty(t, ec.Snapshot().Violations)
		})
	}
}

func TestEnforcer_CheckBeforeToolCall_DurationLimit(t *testing.T) {
	en := newTestEnforcer(nil)
	b := enforcedBudget(models.StopActionStop)
	// Started 31 minutes before the enforcer's clock; the cap is 30.
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 14, 9, 29, 0, 0, time.UTC))

	err := en.CheckBeforeToolCall(b, ec)
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Contains(t, err.Error(), "max_duration_minutes")
}

func TestEnforcer_CheckBeforeToolCall_WarnContinues(t *testing.T) {
	en := newTestEnforcer(nil)
	b := enforcedBudget(models.StopActionWarn)
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC))
	for i := 0; i < 5; i++ {
		ec.RecordIteration()
	}

	require.NoError(t, en.CheckBeforeToolCall(b, ec))
	stopped, _ := ec.IsStopped()
	assert.False(t, stopped, "warn must not stop the execution")

	snap := ec.Snapshot()
	require.Len(t, snap.Warnings, 1)
	assert.Contains(t, snap.Warnings[0], "max_iterations")
	require.Len(t, snap.Violations, 1)

	// The next check warns again rather than stopping.
	require.NoError(t, en.CheckBeforeToolCall(b, ec))
	assert.Len(t, ec.Snapshot().Warnings, 2)
}

func TestEnforcer_CheckBeforeToolCall_EscalateRecordsAndAborts(t *testing.T) {
	bus := events.NewBus(nil)
	sub := bus.Subscribe(events.GlobalChannel)
	defer sub.Close()

	en := newTestEnforcer(bus)
	b := enforcedBudget(models.StopActionEscalate)
	b.ID = "b-esc"
	b.TenantID = "acme"
	b.Escalations = []models.EscalationTrigger{
		{Description: "resource limit hit", Target: "oncall@acme.dev", Urgency: models.UrgencyImmediate},
	}
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC))
	for i := 0; i < 8; i++ {
		ec.RecordToolCall()
	}

	err := en.CheckBeforeToolCall(b, ec)
	require.ErrorIs(t, err, ErrEscalationRequired)
	stopped, _ := ec.IsStopped()
	assert.True(t, stopped)

	escs := en.Escalations("b-esc")
	require.Len(t, escs, 1)
	assert.Equal(t, "oncall@acme.dev", escs[0].Target)
	assert.Equal(t, models.UrgencyImmediate, escs[0].Urgency)
	assert.Contains(t, escs[0].Trigger, "resource limit hit")
	assert.Contains(t, escs[0].Trigger, "max_tool_calls")
	assert.NotEmpty(t, escs[0].ID)

	select {
	case ev := <-sub.C:
		assert.Equal(t, events.EventTypeEscalation, ev.Type)
		assert.Equal(t, "acme", ev.TenantID)
		assert.Equal(t, "oncall@acme.dev", ev.Payload["target"])
	default:
		t.Fatal("expected an escalation event")
	}
}

func TestEnforcer_CheckBeforeToolCall_EscalateFallsBackToDefaultTarget(t *testing.T) {
	en := newTestEnforcer(nil)
	b := enforcedBudget(models.StopActionEscalate)
	b.Escalations = nil
	b.DefaultEscalation = "lead@example.com"
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC))
	for i := 0; i < 5; i++ {
		ec.RecordIteration()
	}

	err := en.CheckBeforeToolCall(b, ec)
	require.ErrorIs(t, err, ErrEscalationRequired)

	escs := en.Escalations("")
	require.Len(t, escs, 1)
	assert.Equal(t, "lead@example.com", escs[0].Target)
	assert.Equal(t, models.UrgencyNormal, escs[0].Urgency)
}

func TestEnforcer_CheckBeforeToolCall_NoStopConditionsDefaultsToStop(t *testing.T) {
	en := newTestEnforcer(nil)
	b := enforcedBudget(models.StopActionWarn)
	b.StopConditions = nil
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC))
	for i := 0; i < 5; i++ {
		ec.RecordIteration()
	}

	err := en.CheckBeforeToolCall(b, ec)
	require.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestEnforcer_CheckBeforeToolCall_StoppedContextShortCircuits(t *testing.T) {
	en := newTestEnforcer(nil)
	b := enforcedBudget(models.StopActionStop)
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 14, 9, 50, 0, 0, time.UTC))
	ec.Stop("manual stop")

	err := en.CheckBeforeToolCall(b, ec)
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Contains(t, err.Error(), "manual stop")
}

func TestEnforcer_UnsetLimitsNeverFire(t *testing.T) {
	en := newTestEnforcer(nil)
	b := enforcedBudget(models.StopActionStop)
	b.Limits = models.ResourceLimits{}
	b.Network.MaxRequests = 0
	ec := models.NewEnforcementContext(b.ID, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	for i := 0; i < 1000; i++ {
		ec.RecordIteration()
		ec.RecordToolCall()
		ec.RecordNetworkRequest()
	}
	ec.RecordFileModified(1_000_000)

	require.NoError(t, en.CheckBeforeToolCall(b, ec))
}
