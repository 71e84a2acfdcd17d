package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	ErrSkillNotFound = errors.New("skill not found")
	ErrSkillExists   = errors.New("skill already registered")
)

// Skill is a named prompt fragment attachable to agents. An agent
// definition lists skill names; the fragments are resolved when its
// prompt is built.
type Skill struct {
	Name        string   `toml:"name" yaml:"name" json:"name"`
	Description string   `toml:"description,omitempty" yaml:"description,omitempty" json:"description,omitempty"`
	Prompt      string   `toml:"prompt" yaml:"prompt" json:"prompt"`
	Tags        []string `toml:"tags,omitempty" yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Validate checks the fragment is usable.
func (s *Skill) Validate() error {
	if s.Name == "" {
		return errors.New("skill missing name")
	}
	if strings.TrimSpace(s.Prompt) == "" {
		return fmt.Errorf("skill %q: empty prompt", s.Name)
	}
	return nil
}

// SkillRegistry owns the skill fragments, keyed by name.
type SkillRegistry struct {
	mu     sync.RWMutex
	skills map[string]Skill
	logger *slog.Logger
}

// NewSkillRegistry returns an empty skill registry.
func NewSkillRegistry(logger *slog.Logger) *SkillRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SkillRegistry{
		skills: make(map[string]Skill),
		logger: logger.With("component", "skill_registry"),
	}
}

// Register validates and stores a skill. Duplicate names fail.
func (r *SkillRegistry) Register(s Skill) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[s.Name]; ok {
		return fmt.Errorf("%w: %s", ErrSkillExists, s.Name)
	}
	r.skills[s.Name] = s
	r.logger.Info("skill registered", "name", s.Name)
	return nil
}

// Get returns the named skill.
func (r *SkillRegistry) Get(name string) (Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	if !ok {
		return Skill{}, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	return s, nil
}

// List returns all skills, sorted by name.
func (r *SkillRegistry) List() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve returns the named skills in request order. Unknown names
// fail so a prompt never silently loses a fragment.
func (r *SkillRegistry) Resolve(names []string) ([]Skill, error) {
	out := make([]Skill, 0, len(names))
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// BuildPrompt joins the named fragments with blank lines, in request
// order.
func (r *SkillRegistry) BuildPrompt(names []string) (string, error) {
	skills, err := r.Resolve(names)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(skills))
	for _, s := range skills {
		parts = append(parts, strings.TrimSpace(s.Prompt))
	}
	return strings.Join(parts, "\n\n"), nil
}

// Unregister removes a skill by name.
func (r *SkillRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.skills[name]; !ok {
		return false
	}
	delete(r.skills, name)
	return true
}
