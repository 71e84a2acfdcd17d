package config

import (
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
)

// BuiltinConfig is the configuration shipped with the binary. User
// config overlays it; entries with the same name replace the built-in.
type BuiltinConfig struct {
	Defaults *Defaults
	Agents   map[string]models.AgentDefinition
	Skills   map[string]registry.Skill
}

// GetBuiltinConfig returns the built-in components.
func GetBuiltinConfig() *BuiltinConfig {
	return &BuiltinConfig{
		Defaults: &Defaults{
			Model:                     "local-builtin",
			MaxIterations:             10,
			ConsecutiveErrorThreshold: 3,
			ObservationCapBytes:       16 * 1024,
			StuckWindow:               6,
			StuckThreshold:            2,
		},
		Agents: map[string]models.AgentDefinition{
			"assistant": {
				Name:        "assistant",
				Version:     "1.0.0",
				Role:        models.RoleImplementer,
				Description: "General-purpose agent used when no specific agent matches.",
				Autonomy:    models.AutonomySupervised,
				Skills:      []string{"concise-output"},
				Constraints: models.AgentConstraints{
					MaxTokens:      8192,
					TimeoutSeconds: 300,
					MaxRetries:     2,
				},
			},
		},
		Skills: map[string]registry.Skill{
			"concise-output": {
				Name:        "concise-output",
				Description: "Keep final answers short and direct.",
				Prompt: "Answer concisely. Lead with the result, then at most " +
					"three sentences of supporting detail.",
				Tags: []string{"style"},
			},
			"cautious-shell": {
				Name:        "cautious-shell",
				Description: "Shell discipline for agents with command access.",
				Prompt: "Before running a command, state what it does. Prefer " +
					"read-only commands. Never delete or overwrite files unless " +
					"the task explicitly requires it.",
				Tags: []string{"safety"},
			},
		},
	}
}
