// Package registry owns the process's shared definition catalogs:
// agents, tools, skills, and packs. Registries hand out borrowed
// references; callers never mutate a definition they did not register.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/praetorworks/praetor/pkg/models"
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrAgentExists   = errors.New("agent already registered")
)

// AgentRegistry is the owner of agent definitions, keyed by name.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]*models.AgentDefinition
	logger *slog.Logger
	now    func() time.Time
}

// NewAgentRegistry returns an empty agent registry.
func NewAgentRegistry(logger *slog.Logger) *AgentRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentRegistry{
		agents: make(map[string]*models.AgentDefinition),
		logger: logger.With("component", "agent_registry"),
		now:    time.Now,
	}
}

// SetClock overrides the time source for tests.
func (r *AgentRegistry) SetClock(now func() time.Time) {
	r.now = now
}

// Register validates and stores a definition. Legacy role aliases are
// rewritten to their current names. Re-registering a name requires a
// different version; same name and version fails.
func (r *AgentRegistry) Register(d models.AgentDefinition) error {
	d.Role = d.Role.Normalize()
	if err := d.Validate(); err != nil {
		return err
	}
	if err := ValidateCapabilityIDs(d.Capabilities); err != nil {
		return fmt.Errorf("agent %q: %w", d.Name, err)
	}
	if d.Lifecycle == "" {
		d.Lifecycle = models.AgentLifecycleActive
	}
	d.CreatedAt = r.now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.agents[d.Name]; ok && existing.Version == d.Version {
		return fmt.Errorf("%w: %s@%s", ErrAgentExists, d.Name, d.Version)
	}
	r.agents[d.Name] = &d

	r.logger.Info("agent registered",
		"name", d.Name, "version", d.Version, "role", d.Role, "autonomy", d.Autonomy)
	return nil
}

// Get returns a borrowed reference to a definition. Callers must treat
// it as read-only.
func (r *AgentRegistry) Get(name string) (*models.AgentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return d, nil
}

// ListAll returns borrowed references to every definition, sorted by
// name.
func (r *AgentRegistry) ListAll() []*models.AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.AgentDefinition, 0, len(r.agents))
	for _, d := range r.agents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListByRole returns the definitions holding a role, sorted by name.
// The role is normalized first so legacy aliases keep working.
func (r *AgentRegistry) ListByRole(role models.AgentRole) []*models.AgentDefinition {
	role = role.Normalize()
	var out []*models.AgentDefinition
	for _, d := range r.ListAll() {
		if d.Role == role {
			out = append(out, d)
		}
	}
	return out
}

// ListByCapability returns the definitions declaring a capability ID,
// sorted by name.
func (r *AgentRegistry) ListByCapability(capabilityID string) []*models.AgentDefinition {
	var out []*models.AgentDefinition
	for _, d := range r.ListAll() {
		for _, id := range d.Capabilities {
			if id == capabilityID {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// Unregister removes a definition by name.
func (r *AgentRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[name]; !ok {
		return false
	}
	delete(r.agents, name)
	return true
}

// Count returns the number of registered definitions.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
