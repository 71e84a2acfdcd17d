package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/praetorworks/praetor/pkg/models"
)

// ManifestFile is the manifest name a pack directory must carry.
const ManifestFile = "pack.toml"

var (
	ErrPackNotFound = errors.New("pack not found")
	ErrPackExists   = errors.New("pack already loaded")
)

// PackManifest is the pack.toml structure. Agent and workflow entries
// are YAML files relative to the pack directory; skills are declared
// inline.
type PackManifest struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description string   `toml:"description,omitempty"`
	Agents      []string `toml:"agents,omitempty"`
	Workflows   []string `toml:"workflows,omitempty"`
	Skills      []Skill  `toml:"skills,omitempty"`
}

// Validate checks the manifest header and that file references stay
// inside the pack directory.
func (m *PackManifest) Validate() error {
	if m.Name == "" {
		return errors.New("pack manifest missing name")
	}
	if m.Version == "" {
		return fmt.Errorf("pack %q: missing version", m.Name)
	}
	for _, rel := range append(append([]string{}, m.Agents...), m.Workflows...) {
		if filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
			return fmt.Errorf("pack %q: file reference %q escapes the pack directory", m.Name, rel)
		}
	}
	return nil
}

// Pack is one loaded agent pack: its manifest, resolved contents, and
// the checksum of the directory it came from.
type Pack struct {
	Manifest  PackManifest
	Dir       string
	Checksum  string
	Agents    []models.AgentDefinition
	Workflows []models.WorkflowDefinition
	Skills    []Skill
}

// PackLoader reads pack directories and installs their contents into
// the agent and skill registries. Workflow definitions are parsed and
// validated but returned on the Pack for the workflow engine to adopt;
// the loader keeps no reference to it.
type PackLoader struct {
	mu     sync.Mutex
	loaded map[string]*Pack

	agents *AgentRegistry
	skills *SkillRegistry
	logger *slog.Logger
}

// NewPackLoader returns a loader installing into the given registries.
func NewPackLoader(agents *AgentRegistry, skills *SkillRegistry, logger *slog.Logger) *PackLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PackLoader{
		loaded: make(map[string]*Pack),
		agents: agents,
		skills: skills,
		logger: logger.With("component", "pack_loader"),
	}
}

// Load reads a pack directory: parse and validate the manifest, load
// every referenced definition, compute the directory checksum, then
// install agents and skills. Every definition is parsed and checked
// against the registries before anything is installed; a half-loaded
// pack would be worse than a missing one.
func (l *PackLoader) Load(dir string) (*Pack, error) {
	var manifest PackManifest
	if _, err := toml.DecodeFile(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestFile, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	pack := &Pack{Manifest: manifest, Dir: dir, Skills: manifest.Skills}

	agentNames := make(map[string]bool, len(manifest.Agents))
	for _, rel := range manifest.Agents {
		var def models.AgentDefinition
		if err := readYAML(filepath.Join(dir, rel), &def); err != nil {
			return nil, fmt.Errorf("pack %q: agent %s: %w", manifest.Name, rel, err)
		}
		def.Role = def.Role.Normalize()
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("pack %q: agent %s: %w", manifest.Name, rel, err)
		}
		if agentNames[def.Name] {
			return nil, fmt.Errorf("pack %q: agent %q declared twice", manifest.Name, def.Name)
		}
		agentNames[def.Name] = true
		pack.Agents = append(pack.Agents, def)
	}
	for _, rel := range manifest.Workflows {
		var def models.WorkflowDefinition
		if err := readYAML(filepath.Join(dir, rel), &def); err != nil {
			return nil, fmt.Errorf("pack %q: workflow %s: %w", manifest.Name, rel, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("pack %q: workflow %s: %w", manifest.Name, rel, err)
		}
		pack.Workflows = append(pack.Workflows, def)
	}
	skillNames := make(map[string]bool, len(pack.Skills))
	for i := range pack.Skills {
		if err := pack.Skills[i].Validate(); err != nil {
			return nil, fmt.Errorf("pack %q: %w", manifest.Name, err)
		}
		if skillNames[pack.Skills[i].Name] {
			return nil, fmt.Errorf("pack %q: skill %q declared twice", manifest.Name, pack.Skills[i].Name)
		}
		skillNames[pack.Skills[i].Name] = true
	}

	for _, def := range pack.Agents {
		if existing, err := l.agents.Get(def.Name); err == nil && existing.Version == def.Version {
			return nil, fmt.Errorf("pack %q: %w: %s@%s", manifest.Name, ErrAgentExists, def.Name, def.Version)
		}
	}
	for _, s := range pack.Skills {
		if _, err := l.skills.Get(s.Name); err == nil {
			return nil, fmt.Errorf("pack %q: %w: %s", manifest.Name, ErrSkillExists, s.Name)
		}
	}

	checksum, err := ComputePackChecksum(dir)
	if err != nil {
		return nil, err
	}
	pack.Checksum = checksum

	l.mu.Lock()
	if _, ok := l.loaded[manifest.Name]; ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPackExists, manifest.Name)
	}
	l.loaded[manifest.Name] = pack
	l.mu.Unlock()

	for _, def := range pack.Agents {
		if err := l.agents.Register(def); err != nil {
			return nil, fmt.Errorf("pack %q: %w", manifest.Name, err)
		}
	}
	for _, s := range pack.Skills {
		if err := l.skills.Register(s); err != nil {
			return nil, fmt.Errorf("pack %q: %w", manifest.Name, err)
		}
	}

	l.logger.Info("pack loaded",
		"name", manifest.Name, "version", manifest.Version,
		"agents", len(pack.Agents), "workflows", len(pack.Workflows),
		"skills", len(pack.Skills), "checksum", checksum[:12])
	return pack, nil
}

// Get returns a loaded pack by name.
func (l *PackLoader) Get(name string) (*Pack, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.loaded[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPackNotFound, name)
	}
	return p, nil
}

// List returns the loaded packs, sorted by name.
func (l *PackLoader) List() []*Pack {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Pack, 0, len(l.loaded))
	for _, p := range l.loaded {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Manifest.Name < out[j].Manifest.Name })
	return out
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
