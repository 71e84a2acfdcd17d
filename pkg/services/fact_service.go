package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/search"
)

// FactService fronts the in-memory fact store agents remember and
// recall through, mirroring facts into the durable store so memory
// survives restarts.
type FactService struct {
	facts  *search.FactStore
	store  *database.FactStore
	logger *slog.Logger
}

// NewFactService builds the service. store is optional.
func NewFactService(facts *search.FactStore, store *database.FactStore, logger *slog.Logger) *FactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactService{
		facts:  facts,
		store:  store,
		logger: logger.With("component", "fact_service"),
	}
}

// Restore loads persisted facts back into the in-memory store at
// startup.
func (s *FactService) Restore(ctx context.Context, tenantIDs []string) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	restored := 0
	for _, tenantID := range tenantIDs {
		facts, err := s.store.List(ctx, tenantID, 10000)
		if err != nil {
			return restored, fmt.Errorf("failed to load persisted facts: %w", err)
		}
		for _, fact := range facts {
			if _, _, err := s.facts.Remember(ctx, fact.TenantID, fact.Content, fact.Tags, fact.Source); err != nil {
				s.logger.Warn("skipping persisted fact", "fact_id", fact.ID, "error", err)
				continue
			}
			restored++
		}
	}
	return restored, nil
}

// Remember stores content as a fact. Duplicate content for the same
// tenant returns the existing fact with created false.
func (s *FactService) Remember(ctx context.Context, tenantID, content string, tags []string, source string) (models.Fact, bool, error) {
	fact, created, err := s.facts.Remember(ctx, tenantID, content, tags, source)
	if err != nil {
		if errors.Is(err, search.ErrEmptyFact) {
			return models.Fact{}, false, NewValidationError("content", "required")
		}
		return models.Fact{}, false, err
	}
	if created && s.store != nil {
		if _, err := s.store.Save(ctx, &fact); err != nil {
			s.logger.Error("failed to persist fact", "fact_id", fact.ID, "error", err)
		}
	}
	return fact, created, nil
}

// Recall searches the tenant's facts with the hybrid ranker.
func (s *FactService) Recall(ctx context.Context, tenantID, query string, topK int) ([]search.ScoredFact, error) {
	if query == "" {
		return nil, NewValidationError("query", "required")
	}
	return s.facts.Search(ctx, tenantID, query, topK)
}

// Forget removes a fact from memory and soft-deletes it in the durable
// store.
func (s *FactService) Forget(ctx context.Context, tenantID, factID string) error {
	if err := s.facts.Forget(tenantID, factID); err != nil {
		if errors.Is(err, search.ErrFactNotFound) {
			return fmt.Errorf("%w: fact %q", ErrNotFound, factID)
		}
		return err
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, factID); err != nil && !errors.Is(err, database.ErrNotFound) {
			s.logger.Error("failed to delete persisted fact", "fact_id", factID, "error", err)
		}
	}
	return nil
}

// Get returns one fact.
func (s *FactService) Get(tenantID, factID string) (models.Fact, error) {
	fact, err := s.facts.Get(tenantID, factID)
	if err != nil {
		return models.Fact{}, fmt.Errorf("%w: fact %q", ErrNotFound, factID)
	}
	return fact, nil
}

// List returns the tenant's facts, optionally narrowed to one tag.
func (s *FactService) List(tenantID, tag string, limit int) []models.Fact {
	return s.facts.List(tenantID, tag, limit)
}
