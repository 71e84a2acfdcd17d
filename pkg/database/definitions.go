package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/models"
)

// DefinitionStore archives versioned agent and workflow definitions.
// (tenant, name, version) is unique per kind; saving an existing
// version overwrites it.
type DefinitionStore struct {
	db *sql.DB
}

// Definitions returns the definition repository.
func (c *Client) Definitions() *DefinitionStore {
	return &DefinitionStore{db: c.db}
}

// SaveAgent upserts one agent definition version.
func (s *DefinitionStore) SaveAgent(ctx context.Context, tenantID string, def *models.AgentDefinition) error {
	return s.save(ctx, "agent_definitions", tenantID, def.Name, def.Version, def)
}

// SaveWorkflow upserts one workflow definition version.
func (s *DefinitionStore) SaveWorkflow(ctx context.Context, tenantID string, def *models.WorkflowDefinition) error {
	return s.save(ctx, "workflow_definitions", tenantID, def.Name, def.Version, def)
}

// GetAgent loads one agent definition version.
func (s *DefinitionStore) GetAgent(ctx context.Context, tenantID, name, version string) (*models.AgentDefinition, error) {
	var def models.AgentDefinition
	if err := s.get(ctx, "agent_definitions", tenantID, name, version, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

// GetWorkflow loads one workflow definition version.
func (s *DefinitionStore) GetWorkflow(ctx context.Context, tenantID, name, version string) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	if err := s.get(ctx, "workflow_definitions", tenantID, name, version, &def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *DefinitionStore) save(ctx context.Context, table, tenantID, name, version string, def any) error {
	if name == "" || version == "" {
		return fmt.Errorf("definition missing name or version")
	}
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, name, version, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, name, version) DO UPDATE SET
			payload = excluded.payload`, table),
		uuid.NewString(), tenantID, name, version, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

func (s *DefinitionStore) get(ctx context.Context, table, tenantID, name, version string, dest any) error {
	var payload string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT payload FROM %s WHERE tenant_id = $1 AND name = $2 AND version = $3`, table),
		tenantID, name, version).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load definition: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return fmt.Errorf("failed to decode definition: %w", err)
	}
	return nil
}
