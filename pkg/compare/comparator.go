package compare

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/praetorworks/praetor/pkg/models"
)

// Comparator defaults.
const (
	DefaultDrawThreshold   = 0.01
	DefaultConfidenceLevel = 0.95

	// Percentile cutoffs for profile labeling.
	strengthPercentile = 75
	weaknessPercentile = 25

	// Below this df the normal approximation is corrected for small samples.
	smallSampleDF = 30
)

// ErrInsufficientSamples is returned when a compared agent has no samples
// for the metric.
var ErrInsufficientSamples = errors.New("insufficient samples")

// Comparator compares agents over tracked populations and updates Elo
// ratings from the outcomes.
type Comparator struct {
	tracker       *PopulationTracker
	elo           *EloStore
	drawThreshold float64
	confidence    float64
}

// NewComparator wires a comparator over a tracker and an Elo store.
func NewComparator(tracker *PopulationTracker, elo *EloStore) *Comparator {
	return &Comparator{
		tracker:       tracker,
		elo:           elo,
		drawThreshold: DefaultDrawThreshold,
		confidence:    DefaultConfidenceLevel,
	}
}

// SetDrawThreshold overrides the mean-difference band treated as a draw.
func (c *Comparator) SetDrawThreshold(t float64) { c.drawThreshold = t }

// SetConfidence overrides the significance confidence level.
func (c *Comparator) SetConfidence(level float64) { c.confidence = level }

// Compare evaluates two agents on one metric, records the outcome in the
// Elo store, and reports means, outcome, and approximate significance.
func (c *Comparator) Compare(agentA, agentB, metric string) (models.ComparisonResult, error) {
	samplesA := c.tracker.Samples(agentA, metric)
	samplesB := c.tracker.Samples(agentB, metric)
	if len(samplesA) == 0 {
		return models.ComparisonResult{}, fmt.Errorf("%w: %s on %s", ErrInsufficientSamples, agentA, metric)
	}
	if len(samplesB) == 0 {
		return models.ComparisonResult{}, fmt.Errorf("%w: %s on %s", ErrInsufficientSamples, agentB, metric)
	}

	meanA := mean(samplesA)
	meanB := mean(samplesB)

	outcome := models.OutcomeDraw
	switch {
	case meanA-meanB > c.drawThreshold:
		outcome = models.OutcomeWin
	case meanB-meanA > c.drawThreshold:
		outcome = models.OutcomeLoss
	}

	p := WelchPValue(samplesA, samplesB)
	c.elo.Update(agentA, agentB, outcome)

	return models.ComparisonResult{
		Metric:      metric,
		AgentA:      agentA,
		AgentB:      agentB,
		MeanA:       meanA,
		MeanB:       meanB,
		SamplesA:    len(samplesA),
		SamplesB:    len(samplesB),
		Outcome:     outcome,
		PValue:      p,
		Significant: p < (1 - c.confidence),
	}, nil
}

// Profile builds an agent's percentile standing on every metric it has
// samples for, labeling metrics at or above the 75th percentile as
// strengths and at or below the 25th as weaknesses.
func (c *Comparator) Profile(agent string) models.AgentProfile {
	profile := models.AgentProfile{Agent: agent}
	metrics := c.tracker.Metrics()
	sort.Strings(metrics)
	for _, metric := range metrics {
		agentMean, ok := c.tracker.Mean(agent, metric)
		if !ok {
			continue
		}
		ranks := PercentileRanks(c.tracker.PopulationMeans(metric))
		standing := models.MetricStanding{
			Metric:     metric,
			Mean:       agentMean,
			Percentile: ranks[agent],
		}
		profile.Standings = append(profile.Standings, standing)
		if standing.Percentile >= strengthPercentile {
			profile.Strengths = append(profile.Strengths, metric)
		} else if standing.Percentile <= weaknessPercentile {
			profile.Weaknesses = append(profile.Weaknesses, metric)
		}
	}
	return profile
}

// WelchPValue approximates the two-tailed p-value for the difference of two
// sample means using Welch's t-statistic with Welch–Satterthwaite degrees
// of freedom. The tail probability uses the normal erfc fit; below
// smallSampleDF the statistic is shrunk by Bartlett's small-sample factor,
// which is conservative (inflates p).
func WelchPValue(a, b []float64) float64 {
	na, nb := float64(len(a)), float64(len(b))
	if na < 2 || nb < 2 {
		// Too few samples to estimate variance; report no significance.
		return 1
	}
	va := variance(a)
	vb := variance(b)
	sa := va / na
	sb := vb / nb
	se := math.Sqrt(sa + sb)
	if se == 0 {
		if mean(a) == mean(b) {
			return 1
		}
		return 0
	}
	t := (mean(a) - mean(b)) / se

	df := (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))
	if df < smallSampleDF {
		t *= 1 - 3/(4*df-1)
	}

	p := math.Erfc(math.Abs(t) / math.Sqrt2)
	if p > 1 {
		p = 1
	}
	return p
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the unbiased sample variance.
func variance(values []float64) float64 {
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values)-1)
}
