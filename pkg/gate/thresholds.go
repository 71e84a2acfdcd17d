// Package gate evaluates metric values and canonical task outcomes
// against per-gate thresholds, producing pass/warn/fail reports, and
// detects regressions against a baseline snapshot.
package gate

import "github.com/praetorworks/praetor/pkg/models"

// Canonical task tags. Each gate requires tasks carrying its tag.
const (
	TagSmoke    = "GT-SMOKE"
	TagCritical = "GT-CRITICAL"
	TagRelease  = "GT-RELEASE"
	TagOptional = "GT-OPTIONAL"
)

// GateTaskTag returns the canonical task tag the gate requires, or ""
// for an unknown gate.
func GateTaskTag(gate models.GateID) string {
	switch gate {
	case models.GatePR:
		return TagSmoke
	case models.GateMerge:
		return TagCritical
	case models.GateRelease:
		return TagRelease
	case models.GateMonitor:
		return TagOptional
	}
	return ""
}

// DefaultThresholds returns the built-in threshold table: success rate
// floors rise from PR to release, rework-rate ceilings tighten, and
// scope adherence must be exact at merge.
func DefaultThresholds() []models.GateThreshold {
	return []models.GateThreshold{
		{Metric: models.MetricSuccessRate, Gate: models.GatePR, Operator: models.OpGTE, Target: 80, Action: models.BreachBlock},
		{Metric: models.MetricSuccessRate, Gate: models.GateMerge, Operator: models.OpGTE, Target: 90, Action: models.BreachBlock},
		{Metric: models.MetricSuccessRate, Gate: models.GateRelease, Operator: models.OpGTE, Target: 95, Action: models.BreachBlock},
		{Metric: models.MetricReworkRate, Gate: models.GatePR, Operator: models.OpLTE, Target: 30, Action: models.BreachWarn},
		{Metric: models.MetricReworkRate, Gate: models.GateMerge, Operator: models.OpLTE, Target: 20, Action: models.BreachBlock},
		{Metric: models.MetricReworkRate, Gate: models.GateRelease, Operator: models.OpLTE, Target: 10, Action: models.BreachBlock},
		{Metric: models.MetricScopeAdherence, Gate: models.GatePR, Operator: models.OpGTE, Target: 90, Action: models.BreachBlock},
		{Metric: models.MetricScopeAdherence, Gate: models.GateMerge, Operator: models.OpEQ, Target: 100, Action: models.BreachBlock},
	}
}

// Satisfies reports whether actual satisfies the operator against
// target. Unknown operators never satisfy.
func Satisfies(op models.ThresholdOperator, actual, target float64) bool {
	switch op {
	case models.OpGTE:
		return actual >= target
	case models.OpLTE:
		return actual <= target
	case models.OpEQ:
		return actual == target
	case models.OpGT:
		return actual > target
	case models.OpLT:
		return actual < target
	}
	return false
}
