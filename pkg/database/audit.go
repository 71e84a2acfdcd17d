package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/praetorworks/praetor/pkg/governance"
)

// AuditStore archives governance audit records beyond the in-memory
// ring's horizon.
type AuditStore struct {
	db *sql.DB
}

// Audit returns the audit repository.
func (c *Client) Audit() *AuditStore {
	return &AuditStore{db: c.db}
}

// Save stores one audit record. Arguments are stored redacted exactly
// as the audit log produced them.
func (s *AuditStore) Save(ctx context.Context, rec governance.AuditRecord) error {
	args, err := json.Marshal(rec.Arguments)
	if err != nil {
		return fmt.Errorf("failed to encode audit arguments: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, tenant_id, tool, arguments, success, error, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.TenantID, rec.Tool, string(args), rec.Success, rec.Error, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save audit record: %w", err)
	}
	return nil
}

// List returns a tenant's audit records, newest first.
func (s *AuditStore) List(ctx context.Context, tenantID string, limit int) ([]governance.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, tool, arguments, success, error, recorded_at
		FROM audit_records WHERE tenant_id = $1
		ORDER BY recorded_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var out []governance.AuditRecord
	for rows.Next() {
		var (
			rec  governance.AuditRecord
			args string
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Tool, &args,
			&rec.Success, &rec.Error, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &rec.Arguments); err != nil {
			return nil, fmt.Errorf("failed to decode audit arguments: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Evict deletes audit records older than the cutoff.
func (s *AuditStore) Evict(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_records WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to evict audit records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
