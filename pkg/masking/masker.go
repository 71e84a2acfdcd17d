// Package masking scrubs secrets from text before it reaches audit
// records, persisted traces, or model observations, and detects leakage
// canaries in tool output.
package masking

import (
	"log/slog"
	"regexp"
	"strings"
)

// compiledPattern pairs a compiled regex with its replacement.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Masker applies a fixed set of secret patterns to text. Created once at
// startup; safe for concurrent use after construction.
type Masker struct {
	patterns []compiledPattern
	logger   *slog.Logger
}

// NewMasker compiles the named pattern group. Unknown group names yield a
// masker with no patterns (masking becomes a pass-through).
func NewMasker(group string, logger *slog.Logger) *Masker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "masking")

	byName := make(map[string]BuiltinPattern, len(builtinPatterns))
	for _, p := range builtinPatterns {
		byName[p.Name] = p
	}

	m := &Masker{logger: logger}
	for _, name := range PatternGroups[group] {
		p, ok := byName[name]
		if !ok {
			continue
		}
		compiled, err := regexp.Compile(p.Pattern)
		if err != nil {
			logger.Error("failed to compile masking pattern, skipping",
				"pattern", p.Name, "error", err)
			continue
		}
		m.patterns = append(m.patterns, compiledPattern{
			name:        p.Name,
			regex:       compiled,
			replacement: p.Replacement,
		})
	}
	logger.Info("masker initialized", "group", group, "patterns", len(m.patterns))
	return m
}

// Mask replaces every secret match in the input. Returns the input
// unchanged when no pattern matches.
func (m *Masker) Mask(data string) string {
	for _, p := range m.patterns {
		data = p.regex.ReplaceAllString(data, p.replacement)
	}
	return data
}

// MaskMap masks every string value of a shallow map, returning a copy.
// Non-string values pass through untouched.
func (m *Masker) MaskMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = m.Mask(s)
			continue
		}
		out[k] = v
	}
	return out
}

// PatternCount reports how many patterns compiled, for health probes.
func (m *Masker) PatternCount() int {
	return len(m.patterns)
}

// DefaultCanaryMarker is the marker planted in seeded secrets; its
// appearance in tool output means a secret escaped.
const DefaultCanaryMarker = "PRAETOR-CANARY"

// LeakageDetector checks tool output for canary markers. The reasoning
// loop terminates with reason leakage_detected on a hit.
type LeakageDetector struct {
	markers []string
}

// NewLeakageDetector builds a detector over the given markers. An empty
// list falls back to the default canary marker.
func NewLeakageDetector(markers []string) *LeakageDetector {
	if len(markers) == 0 {
		markers = []string{DefaultCanaryMarker}
	}
	return &LeakageDetector{markers: markers}
}

// Detect returns the first marker found in the text, or "" when clean.
// Matching is case-sensitive substring containment.
func (d *LeakageDetector) Detect(text string) string {
	for _, marker := range d.markers {
		if strings.Contains(text, marker) {
			return marker
		}
	}
	return ""
}
