package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/models"
)

func newComparatorWith(samples map[string][]float64, metric models.MetricID) *Comparator {
	tracker := NewPopulationTracker()
	for agent, vals := range samples {
		for _, v := range vals {
			tracker.Add(models.Sample{Agent: agent, Metric: string(metric), Value: v})
		}
	}
	return NewComparator(tracker, NewEloStore())
}

func TestComparator_Compare_Win(t *testing.T) {
	c := newComparatorWith(map[string][]float64{
		"alpha": {0.95, 0.92, 0.93, 0.94, 0.96},
		"beta":  {0.60, 0.58, 0.62, 0.61, 0.59},
	}, models.MetricSuccessRate)

	res, err := c.Compare("alpha", "beta", string(models.MetricSuccessRate))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeWin, res.Outcome)
	assert.InDelta(t, 0.94, res.MeanA, 1e-9)
	assert.InDelta(t, 0.60, res.MeanB, 1e-9)
	assert.Equal(t, 5, res.SamplesA)
	assert.Equal(t, 5, res.SamplesB)
	assert.Less(t, res.PValue, 0.05)
	assert.True(t, res.Significant)
}

func TestComparator_Compare_Loss(t *testing.T) {
	c := newComparatorWith(map[string][]float64{
		"alpha": {0.40, 0.42, 0.41},
		"beta":  {0.90, 0.91, 0.89},
	}, models.MetricSuccessRate)

	res, err := c.Compare("alpha", "beta", string(models.MetricSuccessRate))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeLoss, res.Outcome)
}

func TestComparator_Compare_DrawWithinThreshold(t *testing.T) {
	c := newComparatorWith(map[string][]float64{
		"alpha": {0.900, 0.902, 0.898},
		"beta":  {0.905, 0.903, 0.901},
	}, models.MetricSuccessRate)

	res, err := c.Compare("alpha", "beta", string(models.MetricSuccessRate))
	require.NoError(t, err)

	// Means differ by 0.003, inside the 0.01 draw threshold.
	assert.Equal(t, models.OutcomeDraw, res.Outcome)
}

func TestComparator_Compare_UpdatesElo(t *testing.T) {
	tracker := NewPopulationTracker()
	tracker.Add(models.Sample{Agent: "alpha", Metric: string(models.MetricSuccessRate), Value: 0.9})
	tracker.Add(models.Sample{Agent: "beta", Metric: string(models.MetricSuccessRate), Value: 0.5})
	elo := NewEloStore()
	c := NewComparator(tracker, elo)

	_, err := c.Compare("alpha", "beta", string(models.MetricSuccessRate))
	require.NoError(t, err)

	assert.Equal(t, 1516.00, elo.Rating("alpha").Rating)
	assert.Equal(t, 1484.00, elo.Rating("beta").Rating)
}

func TestComparator_Compare_InsufficientSamples(t *testing.T) {
	c := newComparatorWith(map[string][]float64{
		"alpha": {0.9},
	}, models.MetricSuccessRate)

	_, err := c.Compare("alpha", "nobody", string(models.MetricSuccessRate))
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestComparator_Compare_SingleSampleNotSignificant(t *testing.T) {
	c := newComparatorWith(map[string][]float64{
		"alpha": {0.9},
		"beta":  {0.5},
	}, models.MetricSuccessRate)

	res, err := c.Compare("alpha", "beta", string(models.MetricSuccessRate))
	require.NoError(t, err)

	// One sample per side cannot establish significance.
	assert.Equal(t, models.OutcomeWin, res.Outcome)
	assert.Equal(t, 1.0, res.PValue)
	assert.False(t, res.Significant)
}

func TestWelchPValue(t *testing.T) {
	t.Run("identical samples", func(t *testing.T) {
		a := []float64{0.5, 0.5, 0.5}
		p := WelchPValue(a, a)
		assert.Equal(t, 1.0, p)
	})

	t.Run("zero variance different means", func(t *testing.T) {
		p := WelchPValue([]float64{0.9, 0.9, 0.9}, []float64{0.1, 0.1, 0.1})
		assert.Equal(t, 0.0, p)
	})

	t.Run("clearly separated populations", func(t *testing.T) {
		a := []float64{0.90, 0.92, 0.91, 0.93, 0.89, 0.94, 0.90, 0.92}
		b := []float64{0.10, 0.12, 0.11, 0.13, 0.09, 0.14, 0.10, 0.12}
		p := WelchPValue(a, b)
		assert.Less(t, p, 0.001)
	})

	t.Run("overlapping populations", func(t *testing.T) {
		a := []float64{0.50, 0.52, 0.48, 0.51}
		b := []float64{0.49, 0.51, 0.50, 0.52}
		p := WelchPValue(a, b)
		assert.Greater(t, p, 0.5)
	})
}

func TestComparator_Profile(t *testing.T) {
	tracker := NewPopulationTracker()
	metrics := []models.MetricID{models.MetricSuccessRate, models.MetricReworkRate}
	// Alpha has the highest success rate and the lowest rework rate.
	// Percentiles rank raw values, so the low rework value lands at 0.
	for i, agent := range []string{"alpha", "b1", "b2", "b3", "b4"} {
		tracker.Add(models.Sample{Agent: agent, Metric: string(metrics[0]), Value: 0.9 - float64(i)*0.1})
		tracker.Add(models.Sample{Agent: agent, Metric: string(metrics[1]), Value: 10 + float64(i)*5})
	}
	c := NewComparator(tracker, NewEloStore())

	profile := c.Profile("alpha")

	require.Len(t, profile.Standings, 2)
	byMetric := map[string]models.MetricStanding{}
	for _, s := range profile.Standings {
		byMetric[s.Metric] = s
	}
	assert.Equal(t, 100.0, byMetric[string(metrics[0])].Percentile)
	assert.Equal(t, 0.0, byMetric[string(metrics[1])].Percentile)
	assert.Contains(t, profile.Strengths, string(metrics[0]))
	assert.Contains(t, profile.Weaknesses, string(metrics[1]))
}

func TestPopulationTracker(t *testing.T) {
	tr := NewPopulationTracker()
	tr.AddBatch([]models.Sample{
		{Agent: "a", Metric: string(models.MetricSuccessRate), Value: 0.8},
		{Agent: "a", Metric: string(models.MetricSuccessRate), Value: 0.6},
		{Agent: "b", Metric: string(models.MetricSuccessRate), Value: 0.9},
	})

	mean, ok := tr.Mean("a", string(models.MetricSuccessRate))
	require.True(t, ok)
	assert.InDelta(t, 0.7, mean, 1e-9)

	_, ok = tr.Mean("missing", string(models.MetricSuccessRate))
	assert.False(t, ok)

	means := tr.PopulationMeans(string(models.MetricSuccessRate))
	assert.Len(t, means, 2)
	assert.Equal(t, 2, tr.AgentCount(string(models.MetricSuccessRate)))
	assert.Equal(t, 2, tr.SampleCount("a", string(models.MetricSuccessRate)))

	// Mutating the returned slice must not affect the tracker.
	samples := tr.Samples("a", string(models.MetricSuccessRate))
	samples[0] = 999
	mean, _ = tr.Mean("a", string(models.MetricSuccessRate))
	assert.InDelta(t, 0.7, mean, 1e-9)
}
