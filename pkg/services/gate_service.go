package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/gate"
	"github.com/praetorworks/praetor/pkg/models"
)

// GateService evaluates promotion gates, records the resulting release
// decisions, and runs regression detection against stored baselines.
type GateService struct {
	engine   *gate.Engine
	releases *database.ReleaseStore
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	baselines map[string]models.BaselineSnapshot
}

// NewGateService builds the service. releases and bus are optional.
func NewGateService(engine *gate.Engine, releases *database.ReleaseStore,
	bus *events.Bus, logger *slog.Logger) *GateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GateService{
		engine:    engine,
		releases:  releases,
		bus:       bus,
		logger:    logger.With("component", "gate_service"),
		now:       func() time.Time { return time.Now().UTC() },
		baselines: make(map[string]models.BaselineSnapshot),
	}
}

// SetClock overrides the service clock for tests.
func (s *GateService) SetClock(now func() time.Time) { s.now = now }

// EvaluateRequest carries one gate evaluation.
type EvaluateRequest struct {
	TenantID string                      `json:"tenant_id,omitempty"`
	Version  string                      `json:"version"`
	Gate     models.GateID               `json:"gate"`
	Metrics  map[models.MetricID]float64 `json:"metrics,omitempty"`
	Tasks    []models.TaskResult         `json:"tasks,omitempty"`
}

// Evaluate runs one gate and records the release decision: pass
// advances, warn leaves the release proposed, fail blocks it. When a
// baseline exists for the tenant, regressions detected against it ride
// along on the release record.
func (s *GateService) Evaluate(ctx context.Context, req EvaluateRequest) (models.Release, error) {
	if req.Version == "" {
		return models.Release{}, NewValidationError("version", "required")
	}
	if req.Gate == "" {
		return models.Release{}, NewValidationError("gate", "required")
	}

	report := s.engine.Evaluate(req.Gate, req.Metrics, req.Tasks)

	var regressions []models.Regression
	if baseline, ok := s.Baseline(req.TenantID); ok {
		regressions = s.engine.DetectRegressions(baseline, gate.CurrentResults{
			Metrics:     req.Metrics,
			TaskResults: req.Tasks,
		})
	}

	release := models.Release{
		ID:          uuid.NewString(),
		TenantID:    req.TenantID,
		Version:     req.Version,
		Gate:        req.Gate,
		Status:      statusForVerdict(report.Verdict),
		Report:      &report,
		Regressions: regressions,
		CreatedAt:   s.now(),
	}

	if s.releases != nil {
		if err := s.releases.Save(ctx, &release); err != nil {
			return models.Release{}, fmt.Errorf("failed to record release: %w", err)
		}
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:     events.EventTypeGateEvaluated,
			Channel:  events.GlobalChannel,
			TenantID: req.TenantID,
			Payload: map[string]any{
				"release_id": release.ID,
				"version":    req.Version,
				"gate":       string(req.Gate),
				"verdict":    string(report.Verdict),
			},
		})
	}
	s.logger.Info("gate evaluated",
		"gate", req.Gate, "version", req.Version, "verdict", report.Verdict)
	return release, nil
}

// Release returns one recorded release decision.
func (s *GateService) Release(ctx context.Context, id string) (models.Release, error) {
	if s.releases == nil {
		return models.Release{}, fmt.Errorf("%w: release %q", ErrNotFound, id)
	}
	release, err := s.releases.Get(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Release{}, fmt.Errorf("%w: release %q", ErrNotFound, id)
		}
		return models.Release{}, err
	}
	return *release, nil
}

// ListReleases returns release decisions, newest first, optionally
// narrowed by tenant and version.
func (s *GateService) ListReleases(ctx context.Context, tenantID, version string) ([]*models.Release, error) {
	if s.releases == nil {
		return nil, nil
	}
	return s.releases.List(ctx, tenantID, version)
}

// SetBaseline stores the reference snapshot future evaluations compare
// against for one tenant.
func (s *GateService) SetBaseline(tenantID string, snapshot models.BaselineSnapshot) {
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[tenantID] = snapshot
}

// Baseline returns the tenant's stored baseline, if any.
func (s *GateService) Baseline(tenantID string) (models.BaselineSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.baselines[tenantID]
	return snapshot, ok
}

// DetectRegressions compares current results against the tenant's
// baseline without recording a release.
func (s *GateService) DetectRegressions(tenantID string, current gate.CurrentResults) ([]models.Regression, error) {
	baseline, ok := s.Baseline(tenantID)
	if !ok {
		return nil, fmt.Errorf("%w: no baseline for tenant %q", ErrNotFound, tenantID)
	}
	return s.engine.DetectRegressions(baseline, current), nil
}

// GoldenTasks returns the golden scenarios that apply to one gate.
func (s *GateService) GoldenTasks(gateID models.GateID) []models.GoldenTask {
	return gate.TasksForGate(gate.DefaultGoldenTasks(), gateID)
}

// statusForVerdict maps a gate verdict to the release decision.
func statusForVerdict(v models.GateVerdict) models.ReleaseStatus {
	switch v {
	case models.VerdictPass:
		return models.ReleaseAdvanced
	case models.VerdictWarn:
		return models.ReleaseProposed
	default:
		return models.ReleaseBlocked
	}
}
