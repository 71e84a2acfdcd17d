package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/praetorworks/praetor/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// TraceStore persists completed traces and their failure records. The
// full trace is stored as a JSON payload next to the columns listings
// filter on.
type TraceStore struct {
	db *sql.DB
}

// Traces returns the trace repository.
func (c *Client) Traces() *TraceStore {
	return &TraceStore{db: c.db}
}

// SaveTrace upserts one trace.
func (s *TraceStore) SaveTrace(ctx context.Context, trace *models.Trace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO traces (id, task_id, session_id, run_id, tenant_id, agent_id,
			agent_role, model, status, failure_code, failure_category,
			started_at, completed_at, duration_ms, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			failure_code = excluded.failure_code,
			failure_category = excluded.failure_category,
			completed_at = excluded.completed_at,
			duration_ms = excluded.duration_ms,
			payload = excluded.payload`,
		trace.ID, trace.TaskID, trace.SessionID, trace.RunID, trace.TenantID,
		trace.AgentID, string(trace.AgentRole), trace.Model,
		string(trace.Outcome.Status), trace.Outcome.FailureCode,
		string(trace.Outcome.FailureCategory),
		trace.StartedAt, trace.CompletedAt, trace.DurationMs, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save trace: %w", err)
	}
	return nil
}

// GetTrace loads one trace by ID.
func (s *TraceStore) GetTrace(ctx context.Context, id string) (*models.Trace, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM traces WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	var trace models.Trace
	if err := json.Unmarshal([]byte(payload), &trace); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return &trace, nil
}

// ListTraces returns stored traces matching the filters, newest first.
func (s *TraceStore) ListTraces(ctx context.Context, filters models.TraceFilters) ([]*models.Trace, error) {
	where, args := traceFilterClauses(filters)
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := `SELECT payload FROM traces` + where +
		fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}
	defer rows.Close()

	var out []*models.Trace
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		var trace models.Trace
		if err := json.Unmarshal([]byte(payload), &trace); err != nil {
			return nil, fmt.Errorf("failed to decode trace: %w", err)
		}
		out = append(out, &trace)
	}
	return out, rows.Err()
}

func traceFilterClauses(filters models.TraceFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filters.TenantID != "" {
		add("tenant_id", filters.TenantID)
	}
	if filters.Status != "" {
		add("status", string(filters.Status))
	}
	if filters.TaskID != "" {
		add("task_id", filters.TaskID)
	}
	if filters.Category != "" {
		add("failure_category", string(filters.Category))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// SaveFailure stores one failure record.
func (s *TraceStore) SaveFailure(ctx context.Context, rec *models.FailureRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failure_records (id, trace_id, tenant_id, category, severity,
			subcode, message, retryable, escalation_required, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.TraceID, rec.TenantID, string(rec.Category),
		string(rec.Severity), rec.Subcode, rec.Message,
		rec.Retryable, rec.EscalationRequired, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to save failure record: %w", err)
	}
	return nil
}

// ListFailures returns failure records matching the filters, newest first.
func (s *TraceStore) ListFailures(ctx context.Context, filters models.TraceFilters) ([]models.FailureRecord, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filters.TenantID != "" {
		add("tenant_id", filters.TenantID)
	}
	if filters.Category != "" {
		add("category", string(filters.Category))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trace_id, tenant_id, category, severity, subcode, message,
			retryable, escalation_required, recorded_at
		FROM failure_records`+where+
		fmt.Sprintf(` ORDER BY recorded_at DESC LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure records: %w", err)
	}
	defer rows.Close()

	var out []models.FailureRecord
	for rows.Next() {
		var rec models.FailureRecord
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.TenantID, &rec.Category,
			&rec.Severity, &rec.Subcode, &rec.Message,
			&rec.Retryable, &rec.EscalationRequired, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failure record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EvictTraces deletes traces (and their failure records) completed
// before the cutoff, returning how many traces were removed.
func (s *TraceStore) EvictTraces(ctx context.Context, cutoff time.Time) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM failure_records WHERE trace_id IN
			(SELECT id FROM traces WHERE completed_at IS NOT NULL AND completed_at < $1)`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to evict failure records: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM traces WHERE completed_at IS NOT NULL AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to evict traces: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
