package agent

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
)

// stuckDetector flags an agent that keeps issuing the same tool calls.
// Each call is reduced to a fingerprint of tool name plus canonicalized
// arguments; once the sliding window is full, too few distinct
// fingerprints means the loop is going in circles.
type stuckDetector struct {
	window    int
	threshold int
	recent    []string
}

func newStuckDetector(window, threshold int) *stuckDetector {
	return &stuckDetector{window: window, threshold: threshold}
}

// fingerprint hashes tool name and arguments. json.Marshal sorts map keys,
// so argument order never changes the fingerprint.
func fingerprint(tool string, args map[string]any) string {
	h := sha1.New()
	h.Write([]byte(tool))
	h.Write([]byte{0})
	if raw, err := json.Marshal(args); err == nil {
		h.Write(raw)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Observe records one tool call and reports whether the window now
// indicates a stuck loop. Never fires before the window is full.
func (d *stuckDetector) Observe(tool string, args map[string]any) bool {
	d.recent = append(d.recent, fingerprint(tool, args))
	if len(d.recent) > d.window {
		d.recent = d.recent[len(d.recent)-d.window:]
	}
	if len(d.recent) < d.window {
		return false
	}
	unique := make(map[string]struct{}, len(d.recent))
	for _, fp := range d.recent {
		unique[fp] = struct{}{}
	}
	return len(unique) <= d.threshold
}
