// Package compare implements the cross-agent scoring core: per-metric
// sample populations, Elo ratings over pairwise outcomes, Welch-based
// significance, and percentile profiles.
package compare

import (
	"sync"

	"github.com/praetorworks/praetor/pkg/models"
)

// PopulationTracker keeps per-metric, per-agent sample lists. Appends take
// the tracker lock; aggregate computations snapshot under the lock and
// compute outside critical sections where possible.
type PopulationTracker struct {
	mu      sync.Mutex
	samples map[string]map[string][]float64
}

// NewPopulationTracker returns an empty tracker.
func NewPopulationTracker() *PopulationTracker {
	return &PopulationTracker{samples: make(map[string]map[string][]float64)}
}

// Add records one sample.
func (t *PopulationTracker) Add(sample models.Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLocked(sample)
}

// AddBatch records many samples under one lock acquisition.
func (t *PopulationTracker) AddBatch(samples []models.Sample) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range samples {
		t.addLocked(s)
	}
}

func (t *PopulationTracker) addLocked(s models.Sample) {
	byAgent, ok := t.samples[s.Metric]
	if !ok {
		byAgent = make(map[string][]float64)
		t.samples[s.Metric] = byAgent
	}
	byAgent[s.Agent] = append(byAgent[s.Agent], s.Value)
}

// Samples returns a copy of one agent's sample list for a metric.
func (t *PopulationTracker) Samples(agent, metric string) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.samples[metric][agent]...)
}

// Mean returns the mean of an agent's samples for a metric, and whether any
// samples exist.
func (t *PopulationTracker) Mean(agent, metric string) (float64, bool) {
	t.mu.Lock()
	values := t.samples[metric][agent]
	sum := 0.0
	n := len(values)
	for _, v := range values {
		sum += v
	}
	t.mu.Unlock()
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// PopulationMeans returns each agent's mean for a metric.
func (t *PopulationTracker) PopulationMeans(metric string) map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.samples[metric]))
	for agent, values := range t.samples[metric] {
		if len(values) == 0 {
			continue
		}
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		out[agent] = sum / float64(len(values))
	}
	return out
}

// AgentCount reports how many agents have samples for a metric.
func (t *PopulationTracker) AgentCount(metric string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples[metric])
}

// SampleCount reports how many samples an agent has for a metric.
func (t *PopulationTracker) SampleCount(agent, metric string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples[metric][agent])
}

// Metrics lists every metric with at least one sample.
func (t *PopulationTracker) Metrics() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.samples))
	for m := range t.samples {
		out = append(out, m)
	}
	return out
}
