// Package config loads the engine's configuration: environment-backed
// settings, the praetor.yaml definition file with {{.VAR}} expansion,
// built-in defaults overlaid by user config, and a validation pass that
// rejects broken definitions before anything starts.
package config

import (
	"time"

	"github.com/praetorworks/praetor/pkg/mcp"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
)

// FileConfig is the praetor.yaml structure. Map keys name the entries;
// an entry's own name field, when set, must match its key.
type FileConfig struct {
	Defaults   *Defaults                            `yaml:"defaults"`
	Agents     map[string]models.AgentDefinition    `yaml:"agents"`
	Workflows  map[string]models.WorkflowDefinition `yaml:"workflows"`
	Skills     map[string]registry.Skill            `yaml:"skills"`
	Budgets    map[string]models.AutonomyBudget     `yaml:"budgets"`
	MCPServers map[string]mcp.ServerConfig          `yaml:"mcp_servers"`
	Governance *GovernanceConfig                    `yaml:"governance"`
	Queue      *QueueConfig                         `yaml:"queue"`
	Retention  *RetentionConfig                     `yaml:"retention"`
	PackDirs   []string                             `yaml:"pack_dirs"`
}

// Defaults are loop-level fallbacks applied to agents that leave the
// corresponding field unset.
type Defaults struct {
	Model                     string   `yaml:"model"`
	MaxIterations             int      `yaml:"max_iterations"`
	ConsecutiveErrorThreshold int      `yaml:"consecutive_error_threshold"`
	ObservationCapBytes       int      `yaml:"observation_cap_bytes"`
	StuckWindow               int      `yaml:"stuck_window"`
	StuckThreshold            int      `yaml:"stuck_threshold"`
	LeakageMarkers            []string `yaml:"leakage_markers"`
}

// GovernanceConfig tunes the authorization engine.
type GovernanceConfig struct {
	RatePerMinute int      `yaml:"rate_per_minute"`
	Burst         int      `yaml:"burst"`
	AuditCap      int      `yaml:"audit_cap"`
	CommandAllow  []string `yaml:"command_allowlist"`
	PathAllow     []string `yaml:"path_allowlist"`
	DomainAllow   []string `yaml:"domain_allowlist"`
}

// DefaultGovernanceConfig returns the built-in governance defaults.
func DefaultGovernanceConfig() *GovernanceConfig {
	return &GovernanceConfig{
		RatePerMinute: 60,
		Burst:         10,
		AuditCap:      1000,
	}
}

// QueueConfig contains run queue and worker pool configuration.
type QueueConfig struct {
	// Capacity bounds pending jobs; a full queue rejects new runs.
	Capacity int `yaml:"capacity"`

	// WorkerCount is the number of worker goroutines draining the queue.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentAgents bounds sub-agent dispatches per runner.
	MaxConcurrentAgents int `yaml:"max_concurrent_agents"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		Capacity:            256,
		WorkerCount:         5,
		MaxConcurrentAgents: 5,
	}
}

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// TraceRetentionDays is how many days completed traces (and their
	// failure records) are kept before eviction.
	TraceRetentionDays int `yaml:"trace_retention_days"`

	// JobRetentionHours is how long terminal queue records linger for
	// status queries.
	JobRetentionHours int `yaml:"job_retention_hours"`

	// AuditRetentionDays is how long archived audit records are kept.
	AuditRetentionDays int `yaml:"audit_retention_days"`

	// SweepSchedule is the cron expression driving cleanup sweeps.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		TraceRetentionDays: 90,
		JobRetentionHours:  24,
		AuditRetentionDays: 30,
		SweepSchedule:      "@hourly",
	}
}

// Config is the loaded, merged, validated configuration.
type Config struct {
	configDir string

	Defaults   *Defaults
	Agents     []models.AgentDefinition
	Workflows  []models.WorkflowDefinition
	Skills     []registry.Skill
	Budgets    []models.AutonomyBudget
	MCPServers []mcp.ServerConfig
	Governance *GovernanceConfig
	Queue      *QueueConfig
	Retention  *RetentionConfig
	PackDirs   []string

	LoadedAt time.Time
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarizes what was loaded, for the startup log line.
type Stats struct {
	Agents     int
	Workflows  int
	Skills     int
	Budgets    int
	MCPServers int
}

// Stats counts the loaded components.
func (c *Config) Stats() Stats {
	return Stats{
		Agents:     len(c.Agents),
		Workflows:  len(c.Workflows),
		Skills:     len(c.Skills),
		Budgets:    len(c.Budgets),
		MCPServers: len(c.MCPServers),
	}
}
