package gate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/praetorworks/praetor/pkg/models"
)

// Engine evaluates gates against a configurable threshold table. The
// zero table is never used; construction installs the defaults and
// SetThresholds replaces them wholesale.
type Engine struct {
	mu         sync.RWMutex
	thresholds []models.GateThreshold
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine returns an engine carrying the default threshold table.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		thresholds: DefaultThresholds(),
		logger:     logger.With("component", "gate_engine"),
		now:        time.Now,
	}
}

// SetClock overrides the engine's time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// SetThresholds replaces the threshold table.
func (e *Engine) SetThresholds(thresholds []models.GateThreshold) {
	cp := append([]models.GateThreshold(nil), thresholds...)
	e.mu.Lock()
	e.thresholds = cp
	e.mu.Unlock()
}

// Thresholds returns a copy of the active threshold table.
func (e *Engine) Thresholds() []models.GateThreshold {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.GateThreshold(nil), e.thresholds...)
}

// Evaluate produces a gate report for the given metric values and
// optional canonical task results.
//
// A breached block threshold fails the gate; a breached warn threshold
// degrades it to warn unless already failed; a breached alert
// threshold leaves the verdict alone (the report still records the
// breach for alerting). Thresholds whose metric is absent from the
// input are marked missing and do not affect the verdict. Any
// non-pass, non-skip task result fails the merge and release gates.
func (e *Engine) Evaluate(gate models.GateID, metrics map[models.MetricID]float64, tasks []models.TaskResult) models.GateReport {
	report := models.GateReport{
		Gate:        gate,
		Verdict:     models.VerdictPass,
		TaskResults: tasks,
		EvaluatedAt: e.now().UTC(),
	}

	for _, t := range e.Thresholds() {
		if t.Gate != gate {
			continue
		}
		result := models.ThresholdResult{
			Metric:   t.Metric,
			Operator: t.Operator,
			Target:   t.Target,
			Action:   t.Action,
		}
		actual, ok := metrics[t.Metric]
		if !ok {
			result.Missing = true
			report.Thresholds = append(report.Thresholds, result)
			e.logger.Debug("metric missing from gate input",
				"gate", gate, "metric", t.Metric)
			continue
		}
		result.Actual = actual
		result.Passed = Satisfies(t.Operator, actual, t.Target)
		report.Thresholds = append(report.Thresholds, result)
		if result.Passed {
			continue
		}
		switch t.Action {
		case models.BreachBlock:
			report.Verdict = models.VerdictFail
		case models.BreachWarn:
			if report.Verdict != models.VerdictFail {
				report.Verdict = models.VerdictWarn
			}
		}
	}

	for _, task := range tasks {
		if task.Status == models.TaskPass || task.Status == models.TaskSkip {
			continue
		}
		report.FailedTasks = append(report.FailedTasks, task.TaskID)
		if gate == models.GateMerge || gate == models.GateRelease {
			report.Verdict = models.VerdictFail
		}
	}

	e.logger.Info("gate evaluated",
		"gate", gate,
		"verdict", report.Verdict,
		"thresholds", len(report.Thresholds),
		"failed_tasks", len(report.FailedTasks))
	return report
}
