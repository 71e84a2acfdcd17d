package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/praetorworks/praetor/pkg/models"
)

// ReleaseStore persists release records and their gate reports.
type ReleaseStore struct {
	db *sql.DB
}

// Releases returns the release repository.
func (c *Client) Releases() *ReleaseStore {
	return &ReleaseStore{db: c.db}
}

// Save upserts one release record.
func (s *ReleaseStore) Save(ctx context.Context, release *models.Release) error {
	payload, err := json.Marshal(release)
	if err != nil {
		return fmt.Errorf("failed to encode release: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO releases (id, tenant_id, version, gate, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			payload = excluded.payload`,
		release.ID, release.TenantID, release.Version, string(release.Gate),
		string(release.Status), string(payload), release.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save release: %w", err)
	}
	return nil
}

// Get loads one release by ID.
func (s *ReleaseStore) Get(ctx context.Context, id string) (*models.Release, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM releases WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load release: %w", err)
	}
	return decodeRelease(payload)
}

// List returns releases of one tenant, optionally narrowed to a
// version, newest first.
func (s *ReleaseStore) List(ctx context.Context, tenantID, version string) ([]*models.Release, error) {
	query := `SELECT payload FROM releases WHERE tenant_id = $1`
	args := []any{tenantID}
	if version != "" {
		query += ` AND version = $2`
		args = append(args, version)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	var out []*models.Release
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		release, err := decodeRelease(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, release)
	}
	return out, rows.Err()
}

func decodeRelease(payload string) (*models.Release, error) {
	var release models.Release
	if err := json.Unmarshal([]byte(payload), &release); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}
	return &release, nil
}
