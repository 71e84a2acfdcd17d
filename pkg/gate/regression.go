package gate

import (
	"fmt"

	"github.com/praetorworks/praetor/pkg/models"
)

// timeToGreenRatio is the RI-04 trigger: time-to-green worse than
// 1.5x the baseline.
const timeToGreenRatio = 1.5

// CurrentResults is the present-day side of a regression comparison.
type CurrentResults struct {
	Metrics           map[models.MetricID]float64
	TaskResults       []models.TaskResult
	FailureCategories []models.FailureCategory
}

// DetectRegressions compares current results against a baseline
// snapshot and returns every indicator that fired:
//
//	RI-01  previously passing task now fails          (high)
//	RI-02  metric crossed a gate threshold            (medium)
//	RI-03  new failure category appeared              (medium)
//	RI-04  time-to-green worse than 1.5x baseline     (low)
//	RI-05  flaky task became a consistent failure     (high)
func (e *Engine) DetectRegressions(baseline models.BaselineSnapshot, current CurrentResults) []models.Regression {
	var regressions []models.Regression

	currentByTask := make(map[string]models.TaskStatus, len(current.TaskResults))
	for _, task := range current.TaskResults {
		currentByTask[task.TaskID] = task.Status
	}

	for _, task := range baseline.TaskResults {
		if task.Status != models.TaskPass {
			continue
		}
		if currentByTask[task.TaskID] == models.TaskFail {
			regressions = append(regressions, models.Regression{
				Indicator: models.RegressionTaskNowFails,
				Severity:  models.SeverityHigh,
				Subject:   task.TaskID,
				Detail:    "task passed in baseline and fails now",
			})
		}
	}

	for _, t := range e.Thresholds() {
		base, baseOK := baseline.Metrics[t.Metric]
		cur, curOK := current.Metrics[t.Metric]
		if !baseOK || !curOK {
			continue
		}
		if !crossed(t.Operator, base, cur, t.Target) {
			continue
		}
		regressions = append(regressions, models.Regression{
			Indicator: models.RegressionMetricCrossed,
			Severity:  models.SeverityMedium,
			Subject:   string(t.Metric),
			Detail: fmt.Sprintf("%s moved from %.2f to %.2f across the %s target %.2f",
				t.Metric, base, cur, t.Gate, t.Target),
		})
	}

	baseCategories := make(map[models.FailureCategory]struct{}, len(baseline.FailureCategories))
	for _, c := range baseline.FailureCategories {
		baseCategories[c] = struct{}{}
	}
	for _, c := range current.FailureCategories {
		if _, known := baseCategories[c]; known {
			continue
		}
		baseCategories[c] = struct{}{}
		regressions = append(regressions, models.Regression{
			Indicator: models.RegressionNewFailureCat,
			Severity:  models.SeverityMedium,
			Subject:   string(c),
			Detail:    "failure category absent from baseline",
		})
	}

	baseTTG, baseOK := baseline.Metrics[models.MetricTimeToGreen]
	curTTG, curOK := current.Metrics[models.MetricTimeToGreen]
	if baseOK && curOK && baseTTG > 0 && curTTG > baseTTG*timeToGreenRatio {
		regressions = append(regressions, models.Regression{
			Indicator: models.RegressionTimeToGreenWorse,
			Severity:  models.SeverityLow,
			Subject:   string(models.MetricTimeToGreen),
			Detail:    fmt.Sprintf("time-to-green rose from %.2f to %.2f", baseTTG, curTTG),
		})
	}

	for _, taskID := range baseline.FlakyTasks {
		if currentByTask[taskID] == models.TaskFail {
			regressions = append(regressions, models.Regression{
				Indicator: models.RegressionFlakyNowConsistent,
				Severity:  models.SeverityHigh,
				Subject:   taskID,
				Detail:    "flaky task now fails consistently",
			})
		}
	}

	return regressions
}

// crossed reports whether the metric moved from the satisfied side of
// the threshold to the breached side. Floor metrics (gte/gt) regress
// downward, ceiling metrics (lte/lt) regress upward, and exact
// targets regress by leaving the target.
func crossed(op models.ThresholdOperator, base, cur, target float64) bool {
	return Satisfies(op, base, target) && !Satisfies(op, cur, target)
}
