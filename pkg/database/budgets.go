package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/praetorworks/praetor/pkg/models"
)

// BudgetStore persists autonomy budgets so declared envelopes survive
// restarts. The full budget is stored as a JSON payload.
type BudgetStore struct {
	db *sql.DB
}

// Budgets returns the budget repository.
func (c *Client) Budgets() *BudgetStore {
	return &BudgetStore{db: c.db}
}

// Save upserts one budget.
func (s *BudgetStore) Save(ctx context.Context, budget *models.AutonomyBudget) error {
	payload, err := json.Marshal(budget)
	if err != nil {
		return fmt.Errorf("failed to encode budget: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO budgets (id, tenant_id, name, agent_name, state, payload,
			expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			payload = excluded.payload,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		budget.ID, budget.TenantID, budget.Name, budget.AgentName,
		string(budget.State), string(payload),
		budget.ExpiresAt, budget.CreatedAt, budget.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// Get loads one budget by ID.
func (s *BudgetStore) Get(ctx context.Context, id string) (*models.AutonomyBudget, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM budgets WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	return decodeBudget(payload)
}

// List returns budgets, optionally filtered by tenant, newest first.
func (s *BudgetStore) List(ctx context.Context, tenantID string) ([]*models.AutonomyBudget, error) {
	query := `SELECT payload FROM budgets ORDER BY created_at DESC`
	args := []any{}
	if tenantID != "" {
		query = `SELECT payload FROM budgets WHERE tenant_id = $1 ORDER BY created_at DESC`
		args = append(args, tenantID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var out []*models.AutonomyBudget
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budget, err := decodeBudget(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, budget)
	}
	return out, rows.Err()
}

// Delete removes one budget.
func (s *BudgetStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeBudget(payload string) (*models.AutonomyBudget, error) {
	var budget models.AutonomyBudget
	if err := json.Unmarshal([]byte(payload), &budget); err != nil {
		return nil, fmt.Errorf("failed to decode budget: %w", err)
	}
	return &budget, nil
}
