package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundlane/notification/internal/domain"
)

// PreferenceRepository is the PostgreSQL implementation of
// domain.PreferenceRepository.
type PreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository creates a PreferenceRepository.
func NewPreferenceRepository(pool *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{pool: pool}
}

// Overrides returns the stored per-channel flags for (userID, eventType).
func (r *PreferenceRepository) Overrides(ctx context.Context, userID, eventType string) (map[domain.Channel]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel, enabled FROM notification_preferences
		WHERE user_id = $1 AND event_type = $2
	`, userID, eventType)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Channel]bool)
	for rows.Next() {
		var channel string
		var enabled bool
		if err := rows.Scan(&channel, &enabled); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out[domain.Channel(channel)] = enabled
	}
	return out, rows.Err()
}

// Upsert stores preference rows keyed by (user, event type, channel).
// ON CONFLICT DO UPDATE makes re-applying the same rows a no-op on stored
// state, which is what keeps the operation idempotent.
func (r *PreferenceRepository) Upsert(ctx context.Context, prefs []domain.Preference) error {
	for _, p := range prefs {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO notification_preferences (user_id, event_type, channel, enabled, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (user_id, event_type, channel)
			DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()
		`, p.UserID, p.EventType, string(p.Channel), p.Enabled)
		if err != nil {
			return fmt.Errorf("upsert preference (%s, %s, %s): %w", p.UserID, p.EventType, p.Channel, err)
		}
	}
	return nil
}
