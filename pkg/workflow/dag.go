// Package workflow schedules and executes step DAGs: deterministic
// topological ordering, layered parallel groups, action adapters, and
// cron-driven triggers.
package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/praetorworks/praetor/pkg/models"
)

// ErrCycleDetected means the depends_on edges form a cycle.
var ErrCycleDetected = errors.New("cycle detected in step dependencies")

// DAG is the dependency graph of one workflow's steps. Edges run from a
// dependency to its dependents. Build from a validated definition so
// every depends_on target exists.
type DAG struct {
	steps map[string]*models.WorkflowStep
	succ  map[string][]string
	deps  map[string][]string
}

// NewDAG indexes the steps of a workflow into a dependency graph.
func NewDAG(steps []models.WorkflowStep) *DAG {
	d := &DAG{
		steps: make(map[string]*models.WorkflowStep, len(steps)),
		succ:  make(map[string][]string, len(steps)),
		deps:  make(map[string][]string, len(steps)),
	}
	for i := range steps {
		step := &steps[i]
		d.steps[step.ID] = step
		d.deps[step.ID] = append([]string(nil), step.DependsOn...)
	}
	for id, deps := range d.deps {
		for _, dep := range deps {
			d.succ[dep] = append(d.succ[dep], id)
		}
	}
	return d
}

// Step returns the indexed step by ID.
func (d *DAG) Step(id string) (*models.WorkflowStep, bool) {
	s, ok := d.steps[id]
	return s, ok
}

// Len is the number of steps in the graph.
func (d *DAG) Len() int { return len(d.steps) }

// TopologicalOrder returns a deterministic linear ordering: among steps
// with no unordered dependencies, the alphabetically first goes next.
func (d *DAG) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(d.steps))
	for id, deps := range d.deps {
		inDegree[id] = len(deps)
	}

	var ready []string
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(d.steps))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, succ := range d.succ[next] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	if len(order) != len(d.steps) {
		return nil, fmt.Errorf("%w: %d of %d steps unreachable", ErrCycleDetected, len(d.steps)-len(order), len(d.steps))
	}
	return order, nil
}

// ParallelGroups returns execution layers: layer 0 holds every step with
// no dependencies, layer k+1 every remaining step whose dependencies are
// all in layers 0..k. Steps within a layer are sorted for determinism.
func (d *DAG) ParallelGroups() ([][]string, error) {
	emitted := make(map[string]bool, len(d.steps))
	var layers [][]string

	for len(emitted) < len(d.steps) {
		var layer []string
		for id, deps := range d.deps {
			if emitted[id] {
				continue
			}
			satisfied := true
			for _, dep := range deps {
				if !emitted[dep] {
					satisfied = false
					break
				}
			}
			if satisfied {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			return nil, fmt.Errorf("%w: %d steps cannot be layered", ErrCycleDetected, len(d.steps)-len(emitted))
		}
		sort.Strings(layer)
		for _, id := range layer {
			emitted[id] = true
		}
		layers = append(layers, layer)
	}
	return layers, nil
}
