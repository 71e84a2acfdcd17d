package autonomy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/models"
)

// readyBudget returns a budget that passes all ten checks.
func readyBudget() models.AutonomyBudget {
	expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return models.AutonomyBudget{
		ID:        "b-1",
		Name:      "nightly-refactor",
		State:     models.BudgetActive,
		Scope:     models.ScopeSpec{InScope: []string{"refactor the search package"}},
		Files:     models.FilePermissions{WriteGlobs: []string{"pkg/search/**"}},
		Commands:  []models.CommandPermission{{Executable: "go"}},
		Network:   models.NetworkScope{Enabled: true, AllowedDomains: []string{"proxy.golang.org"}},
		Limits:    models.ResourceLimits{MaxIterations: 20, MaxDurationMinutes: 60},
		ExpiresAt: &expiry,
		StopConditions: []models.StopCondition{
			{Description: "any limit reached", Action: models.StopActionStop},
		},
		DefaultEscalation: "oncall@example.com",
	}
}

var preflightNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func TestPreflight_AllPass(t *testing.T) {
	b := readyBudget()
	report := Preflight(&b, preflightNow)

	assert.Equal(t, CheckPass, report.Overall)
	assert.False(t, report.Blocking())
	require.Len(t, report.Checks, 10)
	for _, c := range report.Checks {
		assert.Equal(t, CheckPass, c.Status, c.ID)
	}
	assert.Equal(t, "b-1", report.BudgetID)
	assert.Equal(t, preflightNow, report.RanAt)
}

func TestPreflight_NilBudgetFailsExistence(t *testing.T) {
	report := Preflight(nil, preflightNow)

	assert.Equal(t, CheckFail, report.Overall)
	assert.True(t, report.Blocking())
	c, ok := report.Check(CheckBudgetExists)
	require.True(t, ok)
	assert.Equal(t, CheckFail, c.Status)
}

func TestPreflight_MandatoryFailures(t *testing.T) {
	expired := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*models.AutonomyBudget)
		check  string
	}{
		{
			name:   "draft state",
			mutate: func(b *models.AutonomyBudget) { b.State = models.BudgetDraft },
			check:  CheckBudgetActive,
		},
		{
			name:   "expired",
			mutate: func(b *models.AutonomyBudget) { b.ExpiresAt = &expired },
			check:  CheckNotExpired,
		},
		{
			name:   "empty scope",
			mutate: func(b *models.AutonomyBudget) { b.Scope.InScope = nil },
			check:  CheckScopeDefined,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := readyBudget()
			tt.mutate(&b)
			report := Preflight(&b, preflightNow)

			assert.Equal(t, CheckFail, report.Overall)
			assert.True(t, report.Blocking())
			c, ok := report.Check(tt.check)
			require.True(t, ok)
			assert.Equal(t, CheckFail, c.Status)
			assert.NotEmpty(t, c.Detail)
		})
	}
}

func TestPreflight_AdvisoryChecksOnlyWarn(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.AutonomyBudget)
		check  string
	}{
		{
			name:   "no file globs",
			mutate: func(b *models.AutonomyBudget) { b.Files = models.FilePermissions{} },
			check:  CheckFileScope,
		},
		{
			name:   "no command allowlist",
			mutate: func(b *models.AutonomyBudget) { b.Commands = nil },
			check:  CheckCommandScope,
		},
		{
			name:   "network enabled without domains",
			mutate: func(b *models.AutonomyBudget) { b.Network.AllowedDomains = nil },
			check:  CheckNetworkScope,
		},
		{
			name:   "iteration cap unset",
			mutate: func(b *models.AutonomyBudget) { b.Limits.MaxIterations = 0 },
			check:  CheckResourceLimits,
		},
		{
			name:   "duration cap unset",
			mutate: func(b *models.AutonomyBudget) { b.Limits.MaxDurationMinutes = -1 },
			check:  CheckResourceLimits,
		},
		{
			name:   "no stop conditions",
			mutate: func(b *models.AutonomyBudget) { b.StopConditions = nil },
			check:  CheckStopConditions,
		},
		{
			name: "no escalation path",
			mutate: func(b *models.AutonomyBudget) {
				b.Escalations = nil
				b.DefaultEscalation = ""
			},
			check: CheckEscalationPath,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := readyBudget()
			tt.mutate(&b)
			report := Preflight(&b, preflightNow)

			assert.Equal(t, CheckWarn, report.Overall)
			assert.False(t, report.Blocking(), "advisory checks must not block activation")
			c, ok := report.Check(tt.check)
			require.True(t, ok)
			assert.Equal(t, CheckWarn, c.Status)
		})
	}
}

func TestPreflight_FailOutranksWarn(t *testing.T) {
	b := readyBudget()
	b.State = models.BudgetSuspended
	b.StopConditions = nil

	report := Preflight(&b, preflightNow)
	assert.Equal(t, CheckFail, report.Overall)

	active, _ := report.Check(CheckBudgetActive)
	stops, _ := report.Check(CheckStopConditions)
	assert.Equal(t, CheckFail, active.Status)
	assert.Equal(t, CheckWarn, stops.Status)
}

func TestPreflight_DisabledNetworkNeedsNoDomains(t *testing.T) {
	b := readyBudget()
	b.Network = models.NetworkScope{Enabled: false}

	report := Preflight(&b, preflightNow)
	c, ok := report.Check(CheckNetworkScope)
	require.True(t, ok)
	assert.Equal(t, CheckPass, c.Status)
}
