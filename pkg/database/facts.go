package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/praetorworks/praetor/pkg/models"
)

// FactStore persists durable facts. Facts are deduplicated per tenant
// by content hash; saving an existing fact returns the stored copy.
type FactStore struct {
	db *sql.DB
}

// Facts returns the fact repository.
func (c *Client) Facts() *FactStore {
	return &FactStore{db: c.db}
}

// Save inserts one fact. When a fact with the same content hash already
// exists for the tenant, the existing fact is returned unchanged.
func (s *FactStore) Save(ctx context.Context, fact *models.Fact) (*models.Fact, error) {
	tags, err := json.Marshal(fact.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fact tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO facts (id, tenant_id, content, content_hash, tags, source, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, content_hash) DO NOTHING`,
		fact.ID, fact.TenantID, fact.Content, fact.ContentHash,
		string(tags), fact.Source, fact.Deleted, fact.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save fact: %w", err)
	}
	return s.getByHash(ctx, fact.TenantID, fact.ContentHash)
}

// Get loads one fact by ID. Soft-deleted facts are not returned.
func (s *FactStore) Get(ctx context.Context, id string) (*models.Fact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, content, content_hash, tags, source, created_at
		FROM facts WHERE id = $1 AND deleted = FALSE`, id)
	return scanFact(row)
}

// List returns a tenant's facts, newest first.
func (s *FactStore) List(ctx context.Context, tenantID string, limit int) ([]*models.Fact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, content, content_hash, tags, source, created_at
		FROM facts WHERE tenant_id = $1 AND deleted = FALSE
		ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	var out []*models.Fact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fact)
	}
	return out, rows.Err()
}

// Delete soft-deletes one fact, keeping the row so the hash stays
// reserved against re-insertion.
func (s *FactStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE facts SET deleted = TRUE WHERE id = $1 AND deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FactStore) getByHash(ctx context.Context, tenantID, hash string) (*models.Fact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, content, content_hash, tags, source, created_at
		FROM facts WHERE tenant_id = $1 AND content_hash = $2`, tenantID, hash)
	return scanFact(row)
}

func scanFact(row rowScanner) (*models.Fact, error) {
	var (
		fact models.Fact
		tags string
	)
	err := row.Scan(&fact.ID, &fact.TenantID, &fact.Content, &fact.ContentHash,
		&tags, &fact.Source, &fact.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fact: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &fact.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode fact tags: %w", err)
	}
	return &fact, nil
}
