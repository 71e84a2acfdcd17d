package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/praetorworks/praetor/pkg/models"
)

// RatingStore persists per-tenant Elo ratings so the leaderboard
// survives restarts.
type RatingStore struct {
	db *sql.DB
}

// Ratings returns the rating repository.
func (c *Client) Ratings() *RatingStore {
	return &RatingStore{db: c.db}
}

// Save upserts one agent's rating.
func (s *RatingStore) Save(ctx context.Context, tenantID string, rating *models.EloRating) error {
	history, err := json.Marshal(rating.History)
	if err != nil {
		return fmt.Errorf("failed to encode rating history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO elo_ratings (tenant_id, agent, rating, peak, games,
			wins, losses, draws, history, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, agent) DO UPDATE SET
			rating = excluded.rating,
			peak = excluded.peak,
			games = excluded.games,
			wins = excluded.wins,
			losses = excluded.losses,
			draws = excluded.draws,
			history = excluded.history,
			updated_at = excluded.updated_at`,
		tenantID, rating.Agent, rating.Rating, rating.Peak, rating.Games,
		rating.Wins, rating.Losses, rating.Draws, string(history), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// Get loads one agent's rating.
func (s *RatingStore) Get(ctx context.Context, tenantID, agent string) (*models.EloRating, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent, rating, peak, games, wins, losses, draws, history
		FROM elo_ratings WHERE tenant_id = $1 AND agent = $2`, tenantID, agent)
	rating, err := scanRating(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rating, err
}

// List returns every rating of one tenant, best first.
func (s *RatingStore) List(ctx context.Context, tenantID string) ([]*models.EloRating, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent, rating, peak, games, wins, losses, draws, history
		FROM elo_ratings WHERE tenant_id = $1 ORDER BY rating DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var out []*models.EloRating
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRating(row rowScanner) (*models.EloRating, error) {
	var (
		rating  models.EloRating
		history string
	)
	err := row.Scan(&rating.Agent, &rating.Rating, &rating.Peak, &rating.Games,
		&rating.Wins, &rating.Losses, &rating.Draws, &history)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rating: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &rating.History); err != nil {
		return nil, fmt.Errorf("failed to decode rating history: %w", err)
	}
	return &rating, nil
}
