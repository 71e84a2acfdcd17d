package registry

import (
	"fmt"
	"sort"

	"github.com/praetorworks/praetor/pkg/models"
)

// catalog is the immutable capability taxonomy: 25 entries across five
// categories. Prefix letters: P planning, I implementation,
// V verification, R review, S research.
var catalog = []models.CapabilityDefinition{
	{ID: "P-01", Category: models.CapabilityPlanning, Name: "task-decomposition", Description: "Break a goal into ordered, independently verifiable tasks."},
	{ID: "P-02", Category: models.CapabilityPlanning, Name: "dependency-mapping", Description: "Identify ordering constraints and shared resources between tasks."},
	{ID: "P-03", Category: models.CapabilityPlanning, Name: "effort-estimation", Description: "Size tasks against iteration and duration budgets."},
	{ID: "P-04", Category: models.CapabilityPlanning, Name: "risk-assessment", Description: "Flag tasks that need approval, tighter budgets, or human review."},
	{ID: "P-05", Category: models.CapabilityPlanning, Name: "acceptance-criteria", Description: "Derive measurable completion checks from a goal statement."},

	{ID: "I-01", Category: models.CapabilityImplementation, Name: "code-generation", Description: "Produce new code from a specification or task description."},
	{ID: "I-02", Category: models.CapabilityImplementation, Name: "refactoring", Description: "Restructure existing code without changing observable behavior."},
	{ID: "I-03", Category: models.CapabilityImplementation, Name: "bug-fixing", Description: "Locate and correct defects surfaced by failing checks."},
	{ID: "I-04", Category: models.CapabilityImplementation, Name: "integration", Description: "Wire components, services, and external APIs together."},
	{ID: "I-05", Category: models.CapabilityImplementation, Name: "migration", Description: "Carry out schema, data, and dependency migrations."},

	{ID: "V-01", Category: models.CapabilityVerification, Name: "unit-testing", Description: "Write and run focused tests for a single component."},
	{ID: "V-02", Category: models.CapabilityVerification, Name: "integration-testing", Description: "Exercise multiple components against real or emulated backends."},
	{ID: "V-03", Category: models.CapabilityVerification, Name: "regression-testing", Description: "Re-run canonical tasks and compare against a baseline."},
	{ID: "V-04", Category: models.CapabilityVerification, Name: "performance-profiling", Description: "Measure latency, allocation, and throughput characteristics."},
	{ID: "V-05", Category: models.CapabilityVerification, Name: "static-analysis", Description: "Apply linters and type-level checks without executing code."},

	{ID: "R-01", Category: models.CapabilityReview, Name: "code-review", Description: "Assess correctness, clarity, and style of a change."},
	{ID: "R-02", Category: models.CapabilityReview, Name: "security-review", Description: "Check a change for injection, leakage, and privilege issues."},
	{ID: "R-03", Category: models.CapabilityReview, Name: "architecture-review", Description: "Judge structural fit: boundaries, dependencies, ownership."},
	{ID: "R-04", Category: models.CapabilityReview, Name: "documentation-review", Description: "Verify docs match behavior and cover the public surface."},
	{ID: "R-05", Category: models.CapabilityReview, Name: "release-review", Description: "Confirm gate reports and regressions before a release ships."},

	{ID: "S-01", Category: models.CapabilityResearch, Name: "prior-art-search", Description: "Gather existing approaches, libraries, and references."},
	{ID: "S-02", Category: models.CapabilityResearch, Name: "codebase-exploration", Description: "Map unfamiliar code to find the right extension points."},
	{ID: "S-03", Category: models.CapabilityResearch, Name: "dependency-analysis", Description: "Evaluate third-party candidates for fit, health, and license."},
	{ID: "S-04", Category: models.CapabilityResearch, Name: "experiment-design", Description: "Frame a spike with a hypothesis and a measurable outcome."},
	{ID: "S-05", Category: models.CapabilityResearch, Name: "knowledge-recall", Description: "Query stored facts and past findings relevant to a task."},
}

var catalogByID = func() map[string]models.CapabilityDefinition {
	m := make(map[string]models.CapabilityDefinition, len(catalog))
	for _, c := range catalog {
		m[c.ID] = c
	}
	return m
}()

// Capabilities returns a copy of the full catalog, ordered by ID.
func Capabilities() []models.CapabilityDefinition {
	out := append([]models.CapabilityDefinition(nil), catalog...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CapabilityByID looks up one catalog entry.
func CapabilityByID(id string) (models.CapabilityDefinition, bool) {
	c, ok := catalogByID[id]
	return c, ok
}

// CapabilitiesByCategory returns the catalog entries of one category,
// ordered by ID.
func CapabilitiesByCategory(cat models.CapabilityCategory) []models.CapabilityDefinition {
	var out []models.CapabilityDefinition
	for _, c := range Capabilities() {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}

// ValidateCapabilityIDs rejects references to IDs outside the catalog.
func ValidateCapabilityIDs(ids []string) error {
	for _, id := range ids {
		if _, ok := catalogByID[id]; !ok {
			return fmt.Errorf("unknown capability %q", id)
		}
	}
	return nil
}
