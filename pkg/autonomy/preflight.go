package autonomy

import (
	"fmt"
	"time"

	"github.com/praetorworks/praetor/pkg/models"
)

// CheckStatus is the outcome of a single preflight check.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
)

// Preflight check identifiers. PF-01 through PF-04 are mandatory:
// a failure on any of them blocks activation. The remaining checks
// only ever warn.
const (
	CheckBudgetExists   = "PF-01"
	CheckBudgetActive   = "PF-02"
	CheckNotExpired     = "PF-03"
	CheckScopeDefined   = "PF-04"
	CheckFileScope      = "PF-05"
	CheckCommandScope   = "PF-06"
	CheckNetworkScope   = "PF-07"
	CheckResourceLimits = "PF-08"
	CheckStopConditions = "PF-09"
	CheckEscalationPath = "PF-10"
)

// PreflightCheck is one row of a preflight report.
type PreflightCheck struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Status      CheckStatus `json:"status"`
	Detail      string      `json:"detail,omitempty"`
}

// PreflightReport aggregates the ten checks run against a budget
// before an autonomous execution starts.
type PreflightReport struct {
	BudgetID string           `json:"budget_id"`
	Overall  CheckStatus      `json:"overall"`
	Checks   []PreflightCheck `json:"checks"`
	RanAt    time.Time        `json:"ran_at"`
}

// Blocking reports whether any mandatory check failed. Only mandatory
// checks can fail, so this is equivalent to Overall == CheckFail.
func (r PreflightReport) Blocking() bool {
	return r.Overall == CheckFail
}

// Check returns the row for the given check ID.
func (r PreflightReport) Check(id string) (PreflightCheck, bool) {
	for _, c := range r.Checks {
		if c.ID == id {
			return c, true
		}
	}
	return PreflightCheck{}, false
}

// Preflight runs the ten activation checks against a budget. The
// overall status is the worst individual outcome, with fail ranking
// above warn above pass. A nil budget fails PF-01 and evaluates the
// remaining checks against an empty budget.
func Preflight(b *models.AutonomyBudget, now time.Time) PreflightReport {
	report := PreflightReport{Overall: CheckPass, RanAt: now}

	exists := b != nil
	if !exists {
		b = &models.AutonomyBudget{}
	}
	report.BudgetID = b.ID

	add := func(id, description string, failed bool, status CheckStatus, detail string) {
		check := PreflightCheck{ID: id, Description: description, Status: CheckPass}
		if failed {
			check.Status = status
			check.Detail = detail
		}
		report.Checks = append(report.Checks, check)
		if rank(check.Status) > rank(report.Overall) {
			report.Overall = check.Status
		}
	}

	add(CheckBudgetExists, "budget exists",
		!exists, CheckFail, "no budget found for this execution")
	add(CheckBudgetActive, "budget is active",
		b.State != models.BudgetActive, CheckFail,
		fmt.Sprintf("budget is in state %q", b.State))
	add(CheckNotExpired, "budget has not expired",
		b.Expired(now), CheckFail, "budget expiry has passed")
	add(CheckScopeDefined, "in-scope work is declared",
		len(b.Scope.InScope) == 0, CheckFail, "in_scope list is empty")

	add(CheckFileScope, "file permissions are declared",
		len(b.Files.ReadGlobs) == 0 && len(b.Files.WriteGlobs) == 0,
		CheckWarn, "no read or write globs declared")
	add(CheckCommandScope, "command allowlist is declared",
		len(b.Commands) == 0, CheckWarn, "no commands allowlisted")
	add(CheckNetworkScope, "network access is explicit",
		b.Network.Enabled && len(b.Network.AllowedDomains) == 0,
		CheckWarn, "network enabled without an allowed domain list")
	add(CheckResourceLimits, "resource limits are set",
		b.Limits.MaxIterations <= 0 || b.Limits.MaxDurationMinutes <= 0,
		CheckWarn, "iteration or duration cap is unset")
	add(CheckStopConditions, "stop conditions are declared",
		len(b.StopConditions) == 0, CheckWarn, "no stop conditions declared")
	add(CheckEscalationPath, "an escalation path exists",
		len(b.Escalations) == 0 && b.DefaultEscalation == "",
		CheckWarn, "no escalation trigger or default target")

	return report
}

func rank(s CheckStatus) int {
	switch s {
	case CheckFail:
		return 2
	case CheckWarn:
		return 1
	default:
		return 0
	}
}
