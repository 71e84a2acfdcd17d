package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStuckDetector_RepeatedCallsTrip(t *testing.T) {
	d := newStuckDetector(6, 2)

	args := map[string]any{"command": "ls"}
	for i := 0; i < 5; i++ {
		assert.False(t, d.Observe("shell", args), "window not full at call %d", i+1)
	}
	assert.True(t, d.Observe("shell", args))
}

func TestStuckDetector_VariedCallsDoNotTrip(t *testing.T) {
	d := newStuckDetector(6, 2)

	for i := 0; i < 12; i++ {
		stuck := d.Observe("shell", map[string]any{"command": "ls", "n": i})
		assert.False(t, stuck, "call %d", i+1)
	}
}

func TestStuckDetector_TwoAlternatingFingerprintsTrip(t *testing.T) {
	d := newStuckDetector(6, 2)

	var stuck bool
	for i := 0; i < 6; i++ {
		if i%2 == 0 {
			stuck = d.Observe("recall", map[string]any{"query": "a"})
		} else {
			stuck = d.Observe("recall", map[string]any{"query": "b"})
		}
	}
	assert.True(t, stuck)
}

func TestFingerprint_ArgumentOrderInsensitive(t *testing.T) {
	a := fingerprint("shell", map[string]any{"a": 1, "b": 2})
	b := fingerprint("shell", map[string]any{"b": 2, "a": 1})
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, fingerprint("shell", map[string]any{"a": 1, "b": 3}))
	assert.NotEqual(t, a, fingerprint("file_ops", map[string]any{"a": 1, "b": 2}))
}
