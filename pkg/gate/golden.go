package gate

import "github.com/praetorworks/praetor/pkg/models"

// DefaultGoldenTasks returns the canonical task catalog. IDs are
// stable; gates select tasks by tag.
func DefaultGoldenTasks() []models.GoldenTask {
	return []models.GoldenTask{
		{ID: "GT-01", Tag: TagSmoke, Description: "single-agent task completes and produces a trace", Agent: "implementer"},
		{ID: "GT-02", Tag: TagSmoke, Description: "shell tool runs an allowlisted command under governance", Agent: "implementer"},
		{ID: "GT-03", Tag: TagCritical, Description: "dependency-aware workflow runs layers in order", Workflow: "build-and-verify"},
		{ID: "GT-04", Tag: TagCritical, Description: "autonomy budget stop condition halts the loop", Agent: "implementer"},
		{ID: "GT-05", Tag: TagRelease, Description: "review workflow ends with a gate evaluation", Workflow: "review-and-gate"},
		{ID: "GT-06", Tag: TagRelease, Description: "plan, implement, verify chain hands off between agents", Workflow: "plan-implement-verify"},
		{ID: "GT-07", Tag: TagOptional, Description: "research task recalls stored facts", Agent: "researcher"},
	}
}

// TasksForGate filters the catalog to the tasks carrying the gate's
// required tag.
func TasksForGate(tasks []models.GoldenTask, gate models.GateID) []models.GoldenTask {
	tag := GateTaskTag(gate)
	if tag == "" {
		return nil
	}
	var out []models.GoldenTask
	for _, t := range tasks {
		if t.Tag == tag {
			out = append(out, t)
		}
	}
	return out
}
