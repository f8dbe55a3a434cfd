package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS notification_jobs (
    id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    event_type    TEXT NOT NULL,
    channel       TEXT NOT NULL,
    recipient     TEXT NOT NULL,
    user_id       TEXT NOT NULL,
    subject       TEXT NOT NULL,
    body          TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'PENDING',
    retry_count   INT NOT NULL DEFAULT 0,
    last_error    TEXT NOT NULL DEFAULT '',
    scheduled_for TIMESTAMPTZ NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at  TIMESTAMPTZ
);

-- The worker's claim query: pending rows ordered by due time.
CREATE INDEX IF NOT EXISTS idx_jobs_pending_due
    ON notification_jobs (scheduled_for) WHERE status = 'PENDING';

CREATE INDEX IF NOT EXISTS idx_jobs_failed
    ON notification_jobs (processed_at) WHERE status = 'FAILED';

CREATE TABLE IF NOT EXISTS notification_preferences (
    user_id    TEXT NOT NULL,
    event_type TEXT NOT NULL,
    channel    TEXT NOT NULL,
    enabled    BOOLEAN NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, event_type, channel)
);

CREATE TABLE IF NOT EXISTS inbox_messages (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id    TEXT NOT NULL,
    event_type TEXT NOT NULL,
    title      TEXT NOT NULL,
    body       TEXT NOT NULL,
    is_read    BOOLEAN NOT NULL DEFAULT FALSE,
    read_at    TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_inbox_user
    ON inbox_messages (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_inbox_unread
    ON inbox_messages (user_id) WHERE is_read = FALSE;
`

// EnsureSchema applies the embedded DDL. Statements are idempotent, so this
// runs safely on every boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
