package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/compare"
	"github.com/praetorworks/praetor/pkg/models"
)

func newCompareService(t *testing.T, withStore bool) *CompareService {
	t.Helper()
	tracker := compare.NewPopulationTracker()
	elo := compare.NewEloStore()
	comparator := compare.NewComparator(tracker, elo)
	var svc *CompareService
	if withStore {
		svc = NewCompareService(tracker, elo, comparator, newTestDB(t).Ratings(), nil)
	} else {
		svc = NewCompareService(tracker, elo, comparator, nil, nil)
	}
	return svc
}

func recordSamples(t *testing.T, svc *CompareService, agent string, values ...float64) {
	t.Helper()
	samples := make([]models.Sample, 0, len(values))
	for _, v := range values {
		samples = append(samples, models.Sample{Agent: agent, Metric: "success_rate", Value: v})
	}
	require.NoError(t, svc.Record(samples))
}

func TestCompareService_RecordValidation(t *testing.T) {
	svc := newCompareService(t, false)

	err := svc.Record([]models.Sample{{Metric: "success_rate", Value: 1}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = svc.Record([]models.Sample{{Agent: "a", Value: 1}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompareService_CompareUpdatesLadder(t *testing.T) {
	svc := newCompareService(t, false)
	recordSamples(t, svc, "fast", 90, 92, 95, 91, 94)
	recordSamples(t, svc, "slow", 60, 62, 58, 61, 59)

	result, err := svc.Compare(context.Background(), "acme", "fast", "slow", "success_rate")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWin, result.Outcome)

	board := svc.Leaderboard(10)
	require.Len(t, board, 2)
	assert.Equal(t, "fast", board[0].Agent)
	assert.Greater(t, board[0].Rating, board[1].Rating)
	assert.Equal(t, 1, svc.Rating("fast").Games)
}

func TestCompareService_CompareValidation(t *testing.T) {
	svc := newCompareService(t, false)

	_, err := svc.Compare(context.Background(), "acme", "", "b", "success_rate")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Compare(context.Background(), "acme", "a", "a", "success_rate")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// No samples recorded yet.
	_, err = svc.Compare(context.Background(), "acme", "a", "b", "success_rate")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCompareService_ComparePersistsRatings(t *testing.T) {
	ctx := context.Background()
	client := newTestDB(t)
	tracker := compare.NewPopulationTracker()
	elo := compare.NewEloStore()
	svc := NewCompareService(tracker, elo, compare.NewComparator(tracker, elo), client.Ratings(), nil)

	recordSamples(t, svc, "fast", 90, 92, 95)
	recordSamples(t, svc, "slow", 60, 62, 58)

	_, err := svc.Compare(ctx, "acme", "fast", "slow", "success_rate")
	require.NoError(t, err)

	stored, err := client.Ratings().Get(ctx, "acme", "fast")
	require.NoError(t, err)
	assert.Greater(t, stored.Rating, models.EloInitialRating)
	assert.Equal(t, 1, stored.Wins)
}

func TestCompareService_ProfileAndPercentiles(t *testing.T) {
	svc := newCompareService(t, false)
	recordSamples(t, svc, "fast", 90, 92)
	recordSamples(t, svc, "mid", 75, 77)
	recordSamples(t, svc, "slow", 60, 62)

	profile, err := svc.Profile("fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", profile.Agent)
	assert.NotEmpty(t, profile.Standings)

	ranks := svc.PercentileRanks("success_rate")
	assert.Greater(t, ranks["fast"], ranks["slow"])

	_, err = svc.Profile("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
