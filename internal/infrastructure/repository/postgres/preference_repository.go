package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PreferenceRepository stores one opaque JSON preference record per user.
// Record interpretation lives in the preference usecase.
type PreferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS agent_preferences (
	user_id TEXT PRIMARY KEY,
	record JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("ensure preferences schema: %w", err)
	}
	return nil
}

func (r *PreferenceRepository) Load(ctx context.Context, userID string) ([]byte, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT record FROM agent_preferences WHERE user_id = $1
`, userID)

	var record []byte
	if err := row.Scan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return record, nil
}

func (r *PreferenceRepository) Save(ctx context.Context, userID string, record []byte) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO agent_preferences (user_id, record, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at
`, userID, record, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (r *PreferenceRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
DELETE FROM agent_preferences WHERE user_id = $1
`, userID)
	if err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}
