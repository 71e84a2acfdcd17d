package compare

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileRanks(t *testing.T) {
	ranks := PercentileRanks(map[string]float64{
		"alpha": 90,
		"beta":  70,
		"gamma": 50,
		"delta": 30,
		"eps":   10,
	})

	require.Len(t, ranks, 5)
	assert.Equal(t, 100.0, ranks["alpha"])
	assert.Equal(t, 75.0, ranks["beta"])
	assert.Equal(t, 50.0, ranks["gamma"])
	assert.Equal(t, 25.0, ranks["delta"])
	assert.Equal(t, 0.0, ranks["eps"])
}

func TestPercentileRanks_Ties(t *testing.T) {
	ranks := PercentileRanks(map[string]float64{
		"a": 50,
		"b": 50,
		"c": 10,
	})

	// Tied values count nothing strictly below each other.
	assert.Equal(t, ranks["a"], ranks["b"])
	assert.Equal(t, 50.0, ranks["a"])
	assert.Equal(t, 0.0, ranks["c"])
}

func TestPercentileRanks_SingleAgent(t *testing.T) {
	ranks := PercentileRanks(map[string]float64{"solo": 42})
	assert.Equal(t, 100.0, ranks["solo"])
}

func TestPercentileRanks_Empty(t *testing.T) {
	assert.Empty(t, PercentileRanks(nil))
}

func TestPercentileOf(t *testing.T) {
	pop := []float64{10, 20, 30, 40}
	assert.Equal(t, 100.0, PercentileOf(40, pop))
	assert.Equal(t, 0.0, PercentileOf(10, pop))
	assert.Equal(t, 100.0, PercentileOf(99, pop))
}

func TestPercentileRanks_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("ranks stay within [0,100] and a unique max gets 100", prop.ForAll(
		func(values []float64) bool {
			if len(values) == 0 {
				return true
			}
			pop := make(map[string]float64, len(values))
			maxKey, maxVal, maxCount := "", values[0], 0
			for i, v := range values {
				key := string(rune('a' + i%26)) + string(rune('0'+i/26))
				pop[key] = v
				switch {
				case v > maxVal || maxCount == 0:
					maxKey, maxVal, maxCount = key, v, 1
				case v == maxVal:
					maxCount++
				}
			}
			ranks := PercentileRanks(pop)
			for _, r := range ranks {
				if r < 0 || r > 100 {
					return false
				}
			}
			return maxCount > 1 || ranks[maxKey] == 100.0
		},
		gen.SliceOfN(8, gen.Float64Range(-1000, 1000)),
	))

	properties.TestingRun(t)
}
