// Package autonomy manages the budget envelopes autonomous executions
// run inside: lifecycle state, preflight checks, and runtime limit
// enforcement with stop, escalate, and warn outcomes.
package autonomy

import (
	"errors"
	"fmt"

	"github.com/praetorworks/praetor/pkg/models"
)

// ErrInvalidStateTransition is returned for edges missing from the
// lifecycle graph.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// transitions is the fixed lifecycle graph. Expired and completed have
// no outgoing edges.
var transitions = map[models.BudgetState][]models.BudgetState{
	models.BudgetDraft:           {models.BudgetPendingApproval, models.BudgetActive},
	models.BudgetPendingApproval: {models.BudgetActive, models.BudgetRejected},
	models.BudgetActive:          {models.BudgetSuspended, models.BudgetExpired, models.BudgetCompleted},
	models.BudgetSuspended:       {models.BudgetActive, models.BudgetExpired},
	models.BudgetRejected:        {models.BudgetDraft},
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to models.BudgetState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the budget to the target state, or fails with
// ErrInvalidStateTransition naming the rejected edge.
func Transition(b *models.AutonomyBudget, to models.BudgetState) error {
	if !CanTransition(b.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, b.State, to)
	}
	b.State = to
	return nil
}
