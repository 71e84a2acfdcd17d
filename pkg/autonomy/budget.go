package autonomy

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/models"
)

var (
	ErrBudgetNotFound    = errors.New("budget not found")
	ErrBudgetNotActive   = errors.New("budget not active")
	ErrActivationBlocked = errors.New("activation blocked")
	ErrBudgetImmutable   = errors.New("budget not editable in this state")
)

// Manager owns budget records and their live enforcement contexts.
// Callers receive copies; all mutation goes through the manager.
type Manager struct {
	mu       sync.Mutex
	budgets  map[string]*models.AutonomyBudget
	contexts map[string]*models.EnforcementContext

	logger *slog.Logger
	now    func() time.Time
}

// NewManager returns an empty budget manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		budgets:  make(map[string]*models.AutonomyBudget),
		contexts: make(map[string]*models.EnforcementContext),
		logger:   logger.With("component", "budget_manager"),
		now:      time.Now,
	}
}

// SetClock overrides the time source for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create validates and stores a new budget in the draft state,
// assigning its ID and timestamps.
func (m *Manager) Create(b models.AutonomyBudget) (models.AutonomyBudget, error) {
	if err := b.Validate(); err != nil {
		return models.AutonomyBudget{}, err
	}
	now := m.now().UTC()
	b.ID = uuid.NewString()
	b.State = models.BudgetDraft
	b.CreatedAt = now
	b.UpdatedAt = now

	m.mu.Lock()
	m.budgets[b.ID] = cloneBudget(&b)
	m.mu.Unlock()

	m.logger.Info("budget created", "budget_id", b.ID, "name", b.Name, "tenant_id", b.TenantID)
	return b, nil
}

// Restore inserts a budget as-is, keeping its ID, state, and
// timestamps. Startup recovery from the durable store uses this; Create
// is the path for new budgets.
func (m *Manager) Restore(b models.AutonomyBudget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.ID == "" {
		return fmt.Errorf("%w: restore requires an id", ErrBudgetNotFound)
	}
	m.mu.Lock()
	m.budgets[b.ID] = cloneBudget(&b)
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the budget. Active or suspended budgets whose
// expiry has passed are flipped to expired before being returned.
func (m *Manager) Get(id string) (models.AutonomyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return models.AutonomyBudget{}, fmt.Errorf("%w: %s", ErrBudgetNotFound, id)
	}
	m.expireLocked(b)
	return *cloneBudget(b), nil
}

// List returns copies of all budgets, newest first, optionally filtered
// by tenant.
func (m *Manager) List(tenantID string) []models.AutonomyBudget {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AutonomyBudget, 0, len(m.budgets))
	for _, b := range m.budgets {
		if tenantID != "" && b.TenantID != tenantID {
			continue
		}
		m.expireLocked(b)
		out = append(out, *cloneBudget(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update replaces the declared envelope of a draft budget. Identity,
// state, and timestamps are preserved.
func (m *Manager) Update(b models.AutonomyBudget) (models.AutonomyBudget, error) {
	if err := b.Validate(); err != nil {
		return models.AutonomyBudget{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.budgets[b.ID]
	if !ok {
		return models.AutonomyBudget{}, fmt.Errorf("%w: %s", ErrBudgetNotFound, b.ID)
	}
	if stored.State != models.BudgetDraft {
		return models.AutonomyBudget{}, fmt.Errorf("%w: state %s", ErrBudgetImmutable, stored.State)
	}

	b.State = stored.State
	b.CreatedAt = stored.CreatedAt
	b.UpdatedAt = m.now().UTC()
	m.budgets[b.ID] = cloneBudget(&b)
	return b, nil
}

// Transition moves a budget along the lifecycle graph. Transitions into
// the active state are additionally gated: an expired budget or one
// with an empty in-scope list cannot activate.
func (m *Manager) Transition(id string, to models.BudgetState) (models.AutonomyBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return models.AutonomyBudget{}, fmt.Errorf("%w: %s", ErrBudgetNotFound, id)
	}
	m.expireLocked(b)

	if to == models.BudgetActive {
		if blockers := activationBlockers(b, m.now()); len(blockers) > 0 {
			return models.AutonomyBudget{}, fmt.Errorf("%w: %s", ErrActivationBlocked, strings.Join(blockers, "; "))
		}
	}
	if err := Transition(b, to); err != nil {
		return models.AutonomyBudget{}, err
	}
	b.UpdatedAt = m.now().UTC()
	if to.IsTerminal() {
		delete(m.contexts, id)
	}

	m.logger.Info("budget transitioned", "budget_id", id, "state", to)
	return *cloneBudget(b), nil
}

// Attach returns the live enforcement context for an active budget,
// creating it on first use. Concurrent executions under the same budget
// share one context so limits bound their combined consumption.
func (m *Manager) Attach(id string) (*models.EnforcementContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBudgetNotFound, id)
	}
	m.expireLocked(b)
	if b.State != models.BudgetActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrBudgetNotActive, id, b.State)
	}
	if ec, ok := m.contexts[id]; ok {
		return ec, nil
	}
	ec := models.NewEnforcementContext(id, m.now().UTC())
	m.contexts[id] = ec
	return ec, nil
}

// Context returns the live enforcement context, if one is attached.
func (m *Manager) Context(id string) (*models.EnforcementContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ec, ok := m.contexts[id]
	return ec, ok
}

// Sweep flips active and suspended budgets whose expiry has passed and
// returns the IDs it expired. Called from the retention cron.
func (m *Manager) Sweep() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for id, b := range m.budgets {
		before := b.State
		m.expireLocked(b)
		if before != b.State {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// Preflight runs the activation checks against a stored budget. A
// missing ID yields the nil-budget report.
func (m *Manager) Preflight(id string) PreflightReport {
	now := m.now()
	b, err := m.Get(id)
	if err != nil {
		return Preflight(nil, now)
	}
	return Preflight(&b, now)
}

// expireLocked flips an active or suspended budget to expired when its
// expiry has passed. Other states keep their expiry pending until an
// activation attempt surfaces it.
func (m *Manager) expireLocked(b *models.AutonomyBudget) {
	if b.State != models.BudgetActive && b.State != models.BudgetSuspended {
		return
	}
	if b.Expired(m.now()) {
		b.State = models.BudgetExpired
		b.UpdatedAt = m.now().UTC()
		delete(m.contexts, b.ID)
		m.logger.Info("budget expired", "budget_id", b.ID, "name", b.Name)
	}
}

// activationBlockers returns the mandatory preflight failures that stop
// a budget from entering the active state. The state check is omitted:
// activation is the transition under test.
func activationBlockers(b *models.AutonomyBudget, now time.Time) []string {
	var blockers []string
	if b.Expired(now) {
		blockers = append(blockers, "budget expiry has passed")
	}
	if len(b.Scope.InScope) == 0 {
		blockers = append(blockers, "in_scope list is empty")
	}
	return blockers
}

func cloneBudget(b *models.AutonomyBudget) *models.AutonomyBudget {
	cp := *b
	cp.Scope.InScope = append([]string(nil), b.Scope.InScope...)
	cp.Scope.OutOfScope = append([]string(nil), b.Scope.OutOfScope...)
	cp.Files.ReadGlobs = append([]string(nil), b.Files.ReadGlobs...)
	cp.Files.WriteGlobs = append([]string(nil), b.Files.WriteGlobs...)
	cp.Files.DenyGlobs = append([]string(nil), b.Files.DenyGlobs...)
	cp.Commands = append([]models.CommandPermission(nil), b.Commands...)
	cp.Network.AllowedDomains = append([]string(nil), b.Network.AllowedDomains...)
	cp.Network.DeniedDomains = append([]string(nil), b.Network.DeniedDomains...)
	cp.StopConditions = append([]models.StopCondition(nil), b.StopConditions...)
	cp.Escalations = append([]models.EscalationTrigger(nil), b.Escalations...)
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
