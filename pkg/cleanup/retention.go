// Package cleanup enforces data retention: completed traces, audit
// rows, and finished queue records past their retention window are
// deleted on a cron schedule. All sweeps are idempotent.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/queue"
	"github.com/praetorworks/praetor/pkg/trace"
)

// Policy sets retention windows per data class. Zero windows disable
// the corresponding sweep.
type Policy struct {
	// TraceRetention keeps completed traces (live and archived) this
	// long after completion.
	TraceRetention time.Duration
	// AuditRetention keeps governance audit rows this long.
	AuditRetention time.Duration
	// JobRetention keeps finished queue records this long.
	JobRetention time.Duration
	// Schedule is a cron expression; default "0 * * * *" (hourly).
	Schedule string
}

// DefaultPolicy keeps traces 7 days, audit rows 30 days, and finished
// jobs 24 hours.
func DefaultPolicy() Policy {
	return Policy{
		TraceRetention: 7 * 24 * time.Hour,
		AuditRetention: 30 * 24 * time.Hour,
		JobRetention:   24 * time.Hour,
		Schedule:       "0 * * * *",
	}
}

// Service runs the sweeps. Every target is optional; nil targets are
// skipped.
type Service struct {
	policy    Policy
	collector *trace.Collector
	traces    *database.TraceStore
	audit     *database.AuditStore
	queue     *queue.Queue
	logger    *slog.Logger
	now       func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID
}

// NewService builds the cleanup service.
func NewService(policy Policy, collector *trace.Collector, traces *database.TraceStore,
	audit *database.AuditStore, q *queue.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Schedule == "" {
		policy.Schedule = DefaultPolicy().Schedule
	}
	return &Service{
		policy:    policy,
		collector: collector,
		traces:    traces,
		audit:     audit,
		queue:     q,
		logger:    logger.With("component", "cleanup"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the service clock for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Start schedules the sweeps and runs one immediately.
func (s *Service) Start(ctx context.Context) error {
	s.cron = cron.New()
	entryID, err := s.cron.AddFunc(s.policy.Schedule, func() {
		s.RunAll(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = entryID
	s.cron.Start()

	go s.RunAll(ctx)
	s.logger.Info("retention sweeps scheduled",
		"schedule", s.policy.Schedule,
		"trace_retention", s.policy.TraceRetention,
		"audit_retention", s.policy.AuditRetention,
		"job_retention", s.policy.JobRetention)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("retention sweeps stopped")
}

// RunAll executes every enabled sweep once.
func (s *Service) RunAll(ctx context.Context) {
	now := s.now()
	if s.policy.TraceRetention > 0 {
		s.sweepTraces(ctx, now.Add(-s.policy.TraceRetention))
	}
	if s.policy.AuditRetention > 0 {
		s.sweepAudit(ctx, now.Add(-s.policy.AuditRetention))
	}
	if s.policy.JobRetention > 0 && s.queue != nil {
		if n := s.queue.Evict(now.Add(-s.policy.JobRetention)); n > 0 {
			s.logger.Info("evicted finished jobs", "count", n)
		}
	}
}

func (s *Service) sweepTraces(ctx context.Context, cutoff time.Time) {
	if s.collector != nil {
		if n := s.collector.Evict(cutoff); n > 0 {
			s.logger.Info("evicted live traces", "count", n)
		}
	}
	if s.traces != nil {
		n, err := s.traces.EvictTraces(ctx, cutoff)
		if err != nil {
			s.logger.Error("failed to evict archived traces", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("evicted archived traces", "count", n)
		}
	}
}

func (s *Service) sweepAudit(ctx context.Context, cutoff time.Time) {
	if s.audit == nil {
		return
	}
	n, err := s.audit.Evict(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to evict audit records", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("evicted audit records", "count", n)
	}
}
