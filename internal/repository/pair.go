package repository

import (
	"context"
	"fmt"

	"meetup-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PairSchema creates the pair history table if it does not exist
const PairSchema = `
	CREATE TABLE IF NOT EXISTS pair_history (
		id          TEXT PRIMARY KEY,
		user_a_id   TEXT NOT NULL,
		user_b_id   TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL,
		outcome     TEXT,
		resolved_at TIMESTAMPTZ
	)
`

// PairRepository handles database operations for pair history
type PairRepository struct {
	db *pgxpool.Pool
}

// NewPairRepository creates a new pair repository
func NewPairRepository(db *pgxpool.Pool) *PairRepository {
	return &PairRepository{db: db}
}

// Migrate ensures the pair history table exists
func (r *PairRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, PairSchema); err != nil {
		return fmt.Errorf("failed to migrate pair_history: %w", err)
	}
	return nil
}

// Create inserts a record for a newly opened pair
func (r *PairRepository) Create(ctx context.Context, rec *models.PairRecord) error {
	query := `
		INSERT INTO pair_history (id, user_a_id, user_b_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, rec.ID, rec.UserAID, rec.UserBID, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create pair record: %w", err)
	}
	return nil
}

// Resolve stores the outcome of a pair, inserting the row if Create was lost
func (r *PairRepository) Resolve(ctx context.Context, rec *models.PairRecord) error {
	query := `
		INSERT INTO pair_history (id, user_a_id, user_b_id, created_at, expires_at, outcome, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET outcome = EXCLUDED.outcome, resolved_at = EXCLUDED.resolved_at
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.UserAID, rec.UserBID, rec.CreatedAt, rec.ExpiresAt, rec.Outcome, rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve pair record: %w", err)
	}
	return nil
}

// ListByUserID returns the most recent pair records involving a user
func (r *PairRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*models.PairRecord, error) {
	query := `
		SELECT id, user_a_id, user_b_id, created_at, expires_at, outcome, resolved_at
		FROM pair_history
		WHERE user_a_id = $1 OR user_b_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pair records: %w", err)
	}
	defer rows.Close()

	var records []*models.PairRecord
	for rows.Next() {
		var rec models.PairRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserAID, &rec.UserBID, &rec.CreatedAt, &rec.ExpiresAt, &rec.Outcome, &rec.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pair record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pair records: %w", err)
	}

	return records, nil
}
