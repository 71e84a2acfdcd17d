package agent

// Loop defaults. Each is overridable per run through LoopConfig.
const (
	DefaultMaxIterations       = 10
	DefaultConsecutiveErrors   = 3
	DefaultObservationCapBytes = 16 * 1024
	DefaultStuckWindow         = 6
	DefaultStuckThreshold      = 2
)

// LoopConfig bounds one reasoning-loop run. Zero values take the defaults
// above; LeakageMarkers empty disables leakage detection.
type LoopConfig struct {
	// MaxIterations caps model-call rounds.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// ConsecutiveErrorThreshold terminates the loop once this many tool
	// errors occur in a row without an intervening success.
	ConsecutiveErrorThreshold int `yaml:"consecutive_error_threshold" json:"consecutive_error_threshold"`

	// ObservationCapBytes truncates tool output appended to the
	// conversation.
	ObservationCapBytes int `yaml:"observation_cap_bytes" json:"observation_cap_bytes"`

	// StuckWindow and StuckThreshold drive the repeated-call detector:
	// within the last StuckWindow tool calls, at most StuckThreshold
	// distinct fingerprints means the agent is looping.
	StuckWindow    int `yaml:"stuck_window" json:"stuck_window"`
	StuckThreshold int `yaml:"stuck_threshold" json:"stuck_threshold"`

	// LeakageMarkers are substrings whose appearance in tool output
	// terminates the run.
	LeakageMarkers []string `yaml:"leakage_markers" json:"leakage_markers"`
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ConsecutiveErrorThreshold <= 0 {
		c.ConsecutiveErrorThreshold = DefaultConsecutiveErrors
	}
	if c.ObservationCapBytes <= 0 {
		c.ObservationCapBytes = DefaultObservationCapBytes
	}
	if c.StuckWindow <= 0 {
		c.StuckWindow = DefaultStuckWindow
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = DefaultStuckThreshold
	}
	return c
}
