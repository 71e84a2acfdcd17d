package autonomy

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/models"
)

// Errors returned when a limit breach aborts an execution. Both abort
// the tool loop; ErrEscalationRequired additionally means an escalation
// record was produced for a human operator.
var (
	ErrBudgetExceeded     = errors.New("budget exceeded")
	ErrEscalationRequired = errors.New("escalation required")
)

// Enforcer checks live consumption against budget limits before each
// tool call and dispatches the budget's stop conditions on breach.
type Enforcer struct {
	mu          sync.Mutex
	escalations []models.Escalation

	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

// NewEnforcer returns an enforcer publishing escalations on the given
// bus. The bus may be nil.
func NewEnforcer(bus *events.Bus, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		bus:    bus,
		logger: logger.With("component", "autonomy_enforcer"),
		now:    time.Now,
	}
}

// SetClock overrides the time source for tests.
func (e *Enforcer) SetClock(now func() time.Time) {
	e.now = now
}

// CheckBeforeToolCall verifies that the next tool call stays inside the
// budget's resource limits. Limits with a zero or negative value are
// treated as unset. On a breach the first stop condition decides the
// outcome: stop marks the context stopped and returns
// ErrBudgetExceeded; escalate records an escalation and returns
// ErrEscalationRequired; warn appends a warning and lets the call
// proceed. A budget with no stop conditions stops.
func (e *Enforcer) CheckBeforeToolCall(budget *models.AutonomyBudget, ec *models.EnforcementContext) error {
	if stopped, reason := ec.IsStopped(); stopped {
		return fmt.Errorf("%w: %s", ErrBudgetExceeded, reason)
	}

	violation := firstViolation(budget, ec.Snapshot(), e.now())
	if violation == "" {
		return nil
	}
	ec.AddViolation(violation)

	action := models.StopActionStop
	if len(budget.StopConditions) > 0 {
		action = budget.StopConditions[0].Action
	}

	switch action {
	case models.StopActionWarn:
		ec.AddWarning(violation)
		e.logger.Warn("budget limit breached, continuing per stop condition",
			"budget_id", budget.ID, "violation", violation)
		return nil
	case models.StopActionEscalate:
		esc := e.recordEscalation(budget, violation)
		ec.Stop(violation)
		e.logger.Warn("budget limit breached, escalating",
			"budget_id", budget.ID, "violation", violation,
			"target", esc.Target, "urgency", esc.Urgency)
		return fmt.Errorf("%w: %s", ErrEscalationRequired, violation)
	default:
		ec.Stop(violation)
		e.logger.Warn("budget limit breached, stopping",
			"budget_id", budget.ID, "violation", violation)
		return fmt.Errorf("%w: %s", ErrBudgetExceeded, violation)
	}
}

// Escalations returns recorded escalations, newest first, optionally
// filtered by budget ID.
func (e *Enforcer) Escalations(budgetID string) []models.Escalation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Escalation, 0, len(e.escalations))
	for i := len(e.escalations) - 1; i >= 0; i-- {
		if budgetID == "" || e.escalations[i].BudgetID == budgetID {
			out = append(out, e.escalations[i])
		}
	}
	return out
}

// recordEscalation resolves the escalation target from the budget's
// first trigger, falling back to the default target at normal urgency.
func (e *Enforcer) recordEscalation(budget *models.AutonomyBudget, violation string) models.Escalation {
	esc := models.Escalation{
		ID:         uuid.NewString(),
		BudgetID:   budget.ID,
		Trigger:    violation,
		Target:     budget.DefaultEscalation,
		Urgency:    models.UrgencyNormal,
		RecordedAt: e.now().UTC(),
	}
	if len(budget.Escalations) > 0 {
		trigger := budget.Escalations[0]
		esc.Target = trigger.Target
		if trigger.Urgency.IsValid() {
			esc.Urgency = trigger.Urgency
		}
		if trigger.Description != "" {
			esc.Trigger = fmt.Sprintf("%s: %s", trigger.Description, violation)
		}
	}

	e.mu.Lock()
	e.escalations = append(e.escalations, esc)
	e.mu.Unlock()

	if e.bus != nil {
		e.bus.Publish(events.Event{
			Channel:  events.GlobalChannel,
			Type:     events.EventTypeEscalation,
			TenantID: budget.TenantID,
			Payload: map[string]any{
				"budget_id": esc.BudgetID,
				"target":    esc.Target,
				"urgency":   string(esc.Urgency),
				"trigger":   esc.Trigger,
			},
		})
	}
	return esc
}

// firstViolation returns a description of the first breached limit, or
// the empty string when the call may proceed.
func firstViolation(b *models.AutonomyBudget, snap models.EnforcementSnapshot, now time.Time) string {
	limits := b.Limits
	if limits.MaxIterations > 0 && snap.Iterations >= limits.MaxIterations {
		return fmt.Sprintf("max_iterations reached (%d/%d)", snap.Iterations, limits.MaxIterations)
	}
	if limits.MaxToolCalls > 0 && snap.ToolCalls >= limits.MaxToolCalls {
		return fmt.Sprintf("max_tool_calls reached (%d/%d)", snap.ToolCalls, limits.MaxToolCalls)
	}
	if limits.MaxDurationMinutes > 0 {
		elapsed := now.Sub(snap.StartedAt).Minutes()
		if elapsed >= float64(limits.MaxDurationMinutes) {
			return fmt.Sprintf("max_duration_minutes reached (%.1f/%d)", elapsed, limits.MaxDurationMinutes)
		}
	}
	if limits.MaxFilesModified > 0 && snap.FilesModified >= limits.MaxFilesModified {
		return fmt.Sprintf("max_files_modified reached (%d/%d)", snap.FilesModified, limits.MaxFilesModified)
	}
	if limits.MaxLinesChanged > 0 && snap.LinesChanged >= limits.MaxLinesChanged {
		return fmt.Sprintf("max_lines_changed reached (%d/%d)", snap.LinesChanged, limits.MaxLinesChanged)
	}
	if b.Network.Enabled && b.Network.MaxRequests > 0 && snap.NetworkRequests >= b.Network.MaxRequests {
		return fmt.Sprintf("max_network_requests reached (%d/%d)", snap.NetworkRequests, b.Network.MaxRequests)
	}
	return ""
}
