package compare

// PercentileRanks returns, for each agent, the percentage of other agents
// whose value is strictly less than its own, scaled to [0, 100]. The agent
// holding the strictly highest value receives exactly 100; a lone agent
// receives 100.
func PercentileRanks(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	n := len(values)
	if n == 0 {
		return out
	}
	if n == 1 {
		for agent := range values {
			out[agent] = 100
		}
		return out
	}
	for agent, value := range values {
		below := 0
		for other, otherValue := range values {
			if other == agent {
				continue
			}
			if otherValue < value {
				below++
			}
		}
		out[agent] = float64(below) / float64(n-1) * 100
	}
	return out
}

// PercentileOf ranks a single value against a population of values using
// the same strictly-less rule.
func PercentileOf(value float64, population []float64) float64 {
	if len(population) <= 1 {
		return 100
	}
	below := 0
	for _, v := range population {
		if v < value {
			below++
		}
	}
	total := len(population) - 1
	if below > total {
		below = total
	}
	return float64(below) / float64(total) * 100
}
