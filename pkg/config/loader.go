package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/registry"
)

// ConfigFileName is the definition file read from the config directory.
const ConfigFileName = "praetor.yaml"

// Initialize loads, merges, and validates the configuration. This is
// the primary entry point: the result is ready for registry building.
//
// Steps performed:
//  1. Load praetor.yaml from configDir (missing file means builtin only)
//  2. Expand {{.VAR}} environment references
//  3. Overlay user config on built-in defaults
//  4. Validate every definition and cross-reference
func Initialize(_ context.Context, configDir string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "config", "config_dir", configDir)

	cfg, err := load(configDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"agents", stats.Agents,
		"workflows", stats.Workflows,
		"skills", stats.Skills,
		"budgets", stats.Budgets,
		"mcp_servers", stats.MCPServers)
	return cfg, nil
}

func load(configDir string, log *slog.Logger) (*Config, error) {
	var file FileConfig
	err := loadYAML(filepath.Join(configDir, ConfigFileName), &file)
	if errors.Is(err, ErrConfigNotFound) {
		log.Warn("no praetor.yaml found, using built-in configuration only")
	} else if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}

	builtin := GetBuiltinConfig()

	defaults := builtin.Defaults
	if file.Defaults != nil {
		// User values override; unset fields keep the built-in value.
		if err := mergo.Merge(file.Defaults, defaults); err != nil {
			return nil, fmt.Errorf("failed to merge defaults: %w", err)
		}
		defaults = file.Defaults
	}

	governance := DefaultGovernanceConfig()
	if file.Governance != nil {
		if err := mergo.Merge(file.Governance, governance); err != nil {
			return nil, fmt.Errorf("failed to merge governance config: %w", err)
		}
		governance = file.Governance
	}

	queue := DefaultQueueConfig()
	if file.Queue != nil {
		if err := mergo.Merge(file.Queue, queue); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
		queue = file.Queue
	}

	retention := DefaultRetentionConfig()
	if file.Retention != nil {
		if err := mergo.Merge(file.Retention, retention); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
		retention = file.Retention
	}

	cfg := &Config{
		configDir:  configDir,
		Defaults:   defaults,
		Governance: governance,
		Queue:      queue,
		Retention:  retention,
		PackDirs:   file.PackDirs,
		LoadedAt:   time.Now().UTC(),
	}

	// Built-in components first, user entries overriding by key.
	agents := make(map[string]models.AgentDefinition, len(builtin.Agents)+len(file.Agents))
	for key, def := range builtin.Agents {
		agents[key] = def
	}
	for key, def := range file.Agents {
		if def.Name == "" {
			def.Name = key
		} else if def.Name != key {
			return nil, &ValidationError{Component: "agent", ID: key, Field: "name",
				Err: fmt.Errorf("%w: name %q does not match key", ErrInvalidValue, def.Name)}
		}
		agents[key] = def
	}
	for _, key := range sortedMapKeys(agents) {
		cfg.Agents = append(cfg.Agents, agents[key])
	}

	for _, key := range sortedMapKeys(file.Workflows) {
		def := file.Workflows[key]
		if def.Name == "" {
			def.Name = key
		} else if def.Name != key {
			return nil, &ValidationError{Component: "workflow", ID: key, Field: "name",
				Err: fmt.Errorf("%w: name %q does not match key", ErrInvalidValue, def.Name)}
		}
		cfg.Workflows = append(cfg.Workflows, def)
	}

	skills := make(map[string]registry.Skill, len(builtin.Skills)+len(file.Skills))
	for key, skill := range builtin.Skills {
		skills[key] = skill
	}
	for key, skill := range file.Skills {
		if skill.Name == "" {
			skill.Name = key
		} else if skill.Name != key {
			return nil, &ValidationError{Component: "skill", ID: key, Field: "name",
				Err: fmt.Errorf("%w: name %q does not match key", ErrInvalidValue, skill.Name)}
		}
		skills[key] = skill
	}
	for _, key := range sortedMapKeys(skills) {
		cfg.Skills = append(cfg.Skills, skills[key])
	}

	for _, key := range sortedMapKeys(file.Budgets) {
		budget := file.Budgets[key]
		if budget.Name == "" {
			budget.Name = key
		}
		cfg.Budgets = append(cfg.Budgets, budget)
	}

	for _, key := range sortedMapKeys(file.MCPServers) {
		server := file.MCPServers[key]
		if server.ID == "" {
			server.ID = key
		}
		cfg.MCPServers = append(cfg.MCPServers, server)
	}

	return cfg, nil
}

func loadYAML(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
