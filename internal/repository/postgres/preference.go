package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/EndeeLabs/endee-web-ui/internal/repository"
)

// PreferenceRepo implements repository.PreferenceRepository
type PreferenceRepo struct {
	db *DB
}

// NewPreferenceRepo creates a new preference repository
func NewPreferenceRepo(db *DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// GetPreference retrieves a single preference value
func (r *PreferenceRepo) GetPreference(ctx context.Context, scope, key string) (string, error) {
	var value string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT value FROM preferences WHERE scope = $1 AND key = $2`, scope, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to get preference: %w", err)
	}
	return value, nil
}

// SetPreference inserts or replaces a preference value
func (r *PreferenceRepo) SetPreference(ctx context.Context, scope, key, value string) error {
	query := `
		INSERT INTO preferences (scope, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := r.db.Pool.Exec(ctx, query, scope, key, value); err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

// DeletePreference removes a preference; a missing key is not an error
func (r *PreferenceRepo) DeletePreference(ctx context.Context, scope, key string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM preferences WHERE scope = $1 AND key = $2`, scope, key); err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}

// DeleteScope removes every preference of a scope
func (r *PreferenceRepo) DeleteScope(ctx context.Context, scope string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM preferences WHERE scope = $1`, scope); err != nil {
		return fmt.Errorf("failed to delete preferences: %w", err)
	}
	return nil
}

var _ repository.PreferenceRepository = (*PreferenceRepo)(nil)
