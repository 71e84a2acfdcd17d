package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/praetorworks/praetor/pkg/database"
	"github.com/praetorworks/praetor/pkg/events"
	"github.com/praetorworks/praetor/pkg/models"
	"github.com/praetorworks/praetor/pkg/trace"
)

// TraceService fronts the live trace collector and the durable trace
// store. Reads prefer the collector and fall back to the archive;
// writes flow in one direction only, from collector to store, driven
// by completion events on the bus.
type TraceService struct {
	collector *trace.Collector
	store     *database.TraceStore
	logger    *slog.Logger
}

// NewTraceService builds the service. store is optional; without it the
// service serves live traces only and Archive is a no-op.
func NewTraceService(collector *trace.Collector, store *database.TraceStore, logger *slog.Logger) *TraceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraceService{
		collector: collector,
		store:     store,
		logger:    logger.With("component", "trace_service"),
	}
}

// Get returns one trace, live or archived.
func (s *TraceService) Get(ctx context.Context, traceID string) (models.Trace, error) {
	tr, err := s.collector.Get(traceID)
	if err == nil {
		return tr, nil
	}
	if s.store != nil {
		archived, storeErr := s.store.GetTrace(ctx, traceID)
		if storeErr == nil {
			return *archived, nil
		}
		if !errors.Is(storeErr, database.ErrNotFound) {
			return models.Trace{}, fmt.Errorf("failed to read archived trace: %w", storeErr)
		}
	}
	return models.Trace{}, fmt.Errorf("%w: trace %q", ErrNotFound, traceID)
}

// List returns live traces matching the filters, most recent first.
func (s *TraceService) List(filters models.TraceFilters) []models.Trace {
	return s.collector.ListTraces(filters)
}

// ListArchived returns traces from the durable store.
func (s *TraceService) ListArchived(ctx context.Context, filters models.TraceFilters) ([]*models.Trace, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListTraces(ctx, filters)
}

// ListFailures returns live failure records matching the filters.
func (s *TraceService) ListFailures(filters models.TraceFilters) []models.FailureRecord {
	return s.collector.ListFailures(filters)
}

// ListArchivedFailures returns failure records from the durable store.
func (s *TraceService) ListArchivedFailures(ctx context.Context, filters models.TraceFilters) ([]models.FailureRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListFailures(ctx, filters)
}

// Archive persists a completed trace and its failure records. It is the
// events.Sink the archiver drives: only trace.completed events carry
// work, everything else is acknowledged and dropped.
func (s *TraceService) Archive(ctx context.Context, ev events.Event) error {
	if s.store == nil || ev.Type != events.EventTypeTraceCompleted {
		return nil
	}
	traceID, _ := ev.Payload["trace_id"].(string)
	if traceID == "" {
		return fmt.Errorf("trace.completed event without trace_id")
	}

	tr, err := s.collector.Get(traceID)
	if err != nil {
		return fmt.Errorf("completed trace %q not in collector: %w", traceID, err)
	}
	if err := s.store.SaveTrace(ctx, &tr); err != nil {
		return fmt.Errorf("failed to archive trace %q: %w", traceID, err)
	}
	for _, rec := range s.collector.FailuresFor(traceID) {
		if err := s.store.SaveFailure(ctx, &rec); err != nil {
			return fmt.Errorf("failed to archive failure %q: %w", rec.ID, err)
		}
	}
	s.logger.Debug("trace archived", "trace_id", traceID)
	return nil
}
