package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/praetorworks/praetor/pkg/compare"
	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/models"
)

// CompareService records performance samples, runs pairwise
// comparisons, and keeps the Elo ladder, mirroring rating updates into
// the durable store.
type CompareService struct {
	tracker    *compare.PopulationTracker
	elo        *compare.EloStore
	comparator *compare.Comparator
	store      *database.RatingStore
	logger     *slog.Logger
}

// NewCompareService builds the service. store is optional.
func NewCompareService(tracker *compare.PopulationTracker, elo *compare.EloStore,
	comparator *compare.Comparator, store *database.RatingStore, logger *slog.Logger) *CompareService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompareService{
		tracker:    tracker,
		elo:        elo,
		comparator: comparator,
		store:      store,
		logger:     logger.With("component", "compare_service"),
	}
}

// Record adds performance samples to the population.
func (s *CompareService) Record(samples []models.Sample) error {
	for _, sample := range samples {
		if sample.Agent == "" {
			return NewValidationError("agent", "required")
		}
		if sample.Metric == "" {
			return NewValidationError("metric", "required")
		}
	}
	s.tracker.AddBatch(samples)
	return nil
}

// Compare runs a significance-tested comparison of two agents on one
// metric and folds the outcome into the Elo ladder.
func (s *CompareService) Compare(ctx context.Context, tenantID, agentA, agentB, metric string) (models.ComparisonResult, error) {
	if agentA == "" || agentB == "" {
		return models.ComparisonResult{}, NewValidationError("agent", "both agents required")
	}
	if agentA == agentB {
		return models.ComparisonResult{}, NewValidationError("agent", "cannot compare an agent with itself")
	}
	result, err := s.comparator.Compare(agentA, agentB, metric)
	if err != nil {
		return models.ComparisonResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	// The comparator already folded the outcome into the Elo store;
	// mirror the updated ratings.
	s.persist(ctx, tenantID, s.elo.Rating(agentA))
	s.persist(ctx, tenantID, s.elo.Rating(agentB))

	s.logger.Info("agents compared",
		"agent_a", agentA, "agent_b", agentB, "metric", metric,
		"outcome", result.Outcome, "significant", result.Significant)
	return result, nil
}

// Leaderboard returns the Elo ladder, best first.
func (s *CompareService) Leaderboard(limit int) []models.LeaderboardEntry {
	return s.elo.Leaderboard(limit)
}

// Rating returns one agent's current Elo rating.
func (s *CompareService) Rating(agent string) models.EloRating {
	return s.elo.Rating(agent)
}

// Profile places one agent's metrics within the population and names
// its strengths and weaknesses.
func (s *CompareService) Profile(agent string) (models.AgentProfile, error) {
	if agent == "" {
		return models.AgentProfile{}, NewValidationError("agent", "required")
	}
	return s.comparator.Profile(agent), nil
}

// PercentileRanks returns each agent's percentile on one metric.
func (s *CompareService) PercentileRanks(metric string) map[string]float64 {
	return compare.PercentileRanks(s.tracker.PopulationMeans(metric))
}

func (s *CompareService) persist(ctx context.Context, tenantID string, rating models.EloRating) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, tenantID, &rating); err != nil {
		s.logger.Error("failed to persist rating", "agent", rating.Agent, "error", err)
	}
}
