package models

import "time"

// MetricID identifies one of the five gated engineering metrics.
type MetricID string

const (
	MetricSuccessRate    MetricID = "M-01"
	MetricTimeToGreen    MetricID = "M-02"
	MetricReworkRate     MetricID = "M-03"
	MetricDiffSize       MetricID = "M-04"
	MetricScopeAdherence MetricID = "M-05"
)

// GateID identifies a decision point in the delivery pipeline.
type GateID string

const (
	GatePR      GateID = "G-PR"
	GateMerge   GateID = "G-MRG"
	GateRelease GateID = "G-REL"
	GateMonitor GateID = "G-MON"
)

// IsValid reports whether the gate is known.
func (g GateID) IsValid() bool {
	switch g {
	case GatePR, GateMerge, GateRelease, GateMonitor:
		return true
	}
	return false
}

// ThresholdOperator compares an actual metric value against a target.
type ThresholdOperator string

const (
	OpGTE ThresholdOperator = "gte"
	OpLTE ThresholdOperator = "lte"
	OpEQ  ThresholdOperator = "eq"
	OpGT  ThresholdOperator = "gt"
	OpLT  ThresholdOperator = "lt"
)

// BreachAction says what a threshold breach does to the gate verdict.
type BreachAction string

const (
	BreachBlock BreachAction = "block"
	BreachWarn  BreachAction = "warn"
	BreachAlert BreachAction = "alert"
)

// GateThreshold binds a metric to a target at one gate.
type GateThreshold struct {
	Metric        MetricID          `yaml:"metric" json:"metric"`
	Gate          GateID            `yaml:"gate" json:"gate"`
	Operator      ThresholdOperator `yaml:"operator" json:"operator"`
	Target        float64           `yaml:"target" json:"target"`
	Action        BreachAction      `yaml:"action" json:"action"`
	BypassAllowed bool              `yaml:"bypass_allowed,omitempty" json:"bypass_allowed,omitempty"`
}

// GateVerdict is the overall outcome of a gate evaluation.
type GateVerdict string

const (
	VerdictPass GateVerdict = "pass"
	VerdictWarn GateVerdict = "warn"
	VerdictFail GateVerdict = "fail"
)

// ThresholdResult is the evaluation of one threshold inside a report.
type ThresholdResult struct {
	Metric   MetricID          `json:"metric"`
	Operator ThresholdOperator `json:"operator"`
	Target   float64           `json:"target"`
	Actual   float64           `json:"actual"`
	Passed   bool              `json:"passed"`
	Action   BreachAction      `json:"action"`
	Missing  bool              `json:"missing,omitempty"`
}

// TaskStatus is the outcome of one canonical task run.
type TaskStatus string

const (
	TaskPass TaskStatus = "pass"
	TaskFail TaskStatus = "fail"
	TaskSkip TaskStatus = "skip"
)

// TaskResult is one canonical (golden) task outcome fed into a gate.
type TaskResult struct {
	TaskID      string     `json:"task_id"`
	Tag         string     `json:"tag,omitempty"`
	Status      TaskStatus `json:"status"`
	DurationSec float64    `json:"duration_sec,omitempty"`
	Detail      string     `json:"detail,omitempty"`
}

// GateReport is the full outcome of evaluating one gate.
type GateReport struct {
	Gate        GateID            `json:"gate"`
	Verdict     GateVerdict       `json:"verdict"`
	Thresholds  []ThresholdResult `json:"thresholds"`
	TaskResults []TaskResult      `json:"task_results,omitempty"`
	FailedTasks []string          `json:"failed_tasks,omitempty"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}

// RegressionIndicator categorizes one way a baseline comparison regressed.
type RegressionIndicator string

const (
	RegressionTaskNowFails       RegressionIndicator = "RI-01"
	RegressionMetricCrossed      RegressionIndicator = "RI-02"
	RegressionNewFailureCat      RegressionIndicator = "RI-03"
	RegressionTimeToGreenWorse   RegressionIndicator = "RI-04"
	RegressionFlakyNowConsistent RegressionIndicator = "RI-05"
)

// Regression is one detected regression against a baseline snapshot.
type Regression struct {
	Indicator RegressionIndicator `json:"indicator"`
	Severity  FailureSeverity     `json:"severity"`
	Subject   string              `json:"subject"`
	Detail    string              `json:"detail"`
}

// BaselineSnapshot captures the reference point regression detection
// compares against.
type BaselineSnapshot struct {
	Metrics           map[MetricID]float64 `json:"metrics"`
	TaskResults       []TaskResult         `json:"task_results,omitempty"`
	FailureCategories []FailureCategory    `json:"failure_categories,omitempty"`
	FlakyTasks        []string             `json:"flaky_tasks,omitempty"`
	TakenAt           time.Time            `json:"taken_at"`
}

// GoldenTask is a pre-declared scenario used to gate releases.
type GoldenTask struct {
	ID          string `yaml:"id" json:"id"`
	Tag         string `yaml:"tag" json:"tag"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Workflow    string `yaml:"workflow,omitempty" json:"workflow,omitempty"`
	Agent       string `yaml:"agent,omitempty" json:"agent,omitempty"`
}

// ReleaseStatus is the decision state of a release record.
type ReleaseStatus string

const (
	ReleaseProposed ReleaseStatus = "proposed"
	ReleaseAdvanced ReleaseStatus = "advanced"
	ReleaseBlocked  ReleaseStatus = "blocked"
)

// Release records one gate decision for a version.
type Release struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id,omitempty"`
	Version     string        `json:"version"`
	Gate        GateID        `json:"gate"`
	Status      ReleaseStatus `json:"status"`
	Report      *GateReport   `json:"report,omitempty"`
	Regressions []Regression  `json:"regressions,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
