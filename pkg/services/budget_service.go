package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/praetorworks/praetor/pkg/autonomy"
	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/models"
)

// BudgetService manages autonomy budget lifecycle on top of the
// in-memory manager, mirroring every mutation into the durable store
// so budgets survive restarts.
type BudgetService struct {
	manager  *autonomy.Manager
	enforcer *autonomy.Enforcer
	store    *database.BudgetStore
	logger   *slog.Logger
}

// NewBudgetService builds the service. store is optional.
func NewBudgetService(manager *autonomy.Manager, enforcer *autonomy.Enforcer,
	store *database.BudgetStore, logger *slog.Logger) *BudgetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetService{
		manager:  manager,
		enforcer: enforcer,
		store:    store,
		logger:   logger.With("component", "budget_service"),
	}
}

// Restore loads persisted budgets back into the manager at startup.
func (s *BudgetService) Restore(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	budgets, err := s.store.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to load persisted budgets: %w", err)
	}
	restored := 0
	for _, b := range budgets {
		if b.State == models.BudgetExpired || b.State == models.BudgetCompleted || b.State == models.BudgetRejected {
			continue
		}
		if err := s.manager.Restore(*b); err != nil {
			s.logger.Warn("skipping persisted budget", "budget_id", b.ID, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

// Create registers a new budget in draft state.
func (s *BudgetService) Create(ctx context.Context, budget models.AutonomyBudget) (models.AutonomyBudget, error) {
	created, err := s.manager.Create(budget)
	if err != nil {
		return models.AutonomyBudget{}, mapBudgetError(err)
	}
	s.persist(ctx, created)
	return created, nil
}

// Get returns one budget by ID.
func (s *BudgetService) Get(id string) (models.AutonomyBudget, error) {
	budget, err := s.manager.Get(id)
	if err != nil {
		return models.AutonomyBudget{}, mapBudgetError(err)
	}
	return budget, nil
}

// List returns budgets, optionally narrowed to one tenant.
func (s *BudgetService) List(tenantID string) []models.AutonomyBudget {
	return s.manager.List(tenantID)
}

// Update replaces a mutable budget's definition.
func (s *BudgetService) Update(ctx context.Context, budget models.AutonomyBudget) (models.AutonomyBudget, error) {
	updated, err := s.manager.Update(budget)
	if err != nil {
		return models.AutonomyBudget{}, mapBudgetError(err)
	}
	s.persist(ctx, updated)
	return updated, nil
}

// Transition moves a budget through its lifecycle.
func (s *BudgetService) Transition(ctx context.Context, id string, to models.BudgetState) (models.AutonomyBudget, error) {
	budget, err := s.manager.Transition(id, to)
	if err != nil {
		return models.AutonomyBudget{}, mapBudgetError(err)
	}
	s.persist(ctx, budget)
	return budget, nil
}

// Preflight reports whether a budget could activate right now and why
// not when it cannot.
func (s *BudgetService) Preflight(id string) (autonomy.PreflightReport, error) {
	if _, err := s.manager.Get(id); err != nil {
		return autonomy.PreflightReport{}, mapBudgetError(err)
	}
	return s.manager.Preflight(id), nil
}

// Escalations lists the enforcement escalations recorded against a
// budget.
func (s *BudgetService) Escalations(id string) ([]models.Escalation, error) {
	if _, err := s.manager.Get(id); err != nil {
		return nil, mapBudgetError(err)
	}
	if s.enforcer == nil {
		return nil, nil
	}
	return s.enforcer.Escalations(id), nil
}

// persist mirrors one budget into the durable store; failures are
// logged, not returned, so persistence never blocks lifecycle calls.
func (s *BudgetService) persist(ctx context.Context, budget models.AutonomyBudget) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, &budget); err != nil {
		s.logger.Error("failed to persist budget", "budget_id", budget.ID, "error", err)
	}
}

// mapBudgetError folds autonomy sentinels into service errors so the
// transport layer maps them uniformly.
func mapBudgetError(err error) error {
	switch {
	case errors.Is(err, autonomy.ErrBudgetNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, autonomy.ErrBudgetImmutable),
		errors.Is(err, autonomy.ErrBudgetNotActive),
		errors.Is(err, autonomy.ErrActivationBlocked),
		errors.Is(err, autonomy.ErrInvalidStateTransition):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}
