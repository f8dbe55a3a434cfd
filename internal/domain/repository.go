package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobRepository defines the port for the durable job queue.
// Implementations live in infrastructure/postgres.
type JobRepository interface {
	// CreateBatch inserts the given jobs with status PENDING and returns their IDs.
	CreateBatch(ctx context.Context, inputs []CreateJobInput) ([]uuid.UUID, error)

	// ClaimDue atomically flips up to limit PENDING jobs whose scheduled_for
	// is at or before now to PROCESSING, oldest due first, and returns the
	// claimed rows. Two concurrent callers must never receive the same job.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// MarkSent records terminal success for a PROCESSING job.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// Reschedule puts a PROCESSING job back to PENDING for a later attempt,
	// recording the attempt count, the failure, and the backoff deadline.
	Reschedule(ctx context.Context, id uuid.UUID, retryCount int, lastError string, scheduledFor time.Time) error

	// MarkFailed records terminal failure (dead-letter) for a PROCESSING job.
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, lastError string, at time.Time) error

	// GetByID fetches a single job.
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// ListFailed returns dead-lettered jobs for the audit surface, newest first.
	ListFailed(ctx context.Context, limit, offset int) ([]*Job, error)

	// PurgeTerminalOlderThan deletes SENT and FAILED jobs older than the given
	// number of days. Returns the number of rows removed.
	PurgeTerminalOlderThan(ctx context.Context, days int) (int64, error)
}

// PreferenceRepository defines the port for stored per-channel overrides.
type PreferenceRepository interface {
	// Overrides returns the explicit per-channel flags stored for
	// (userID, eventType). Channels with no stored row are absent from the map.
	Overrides(ctx context.Context, userID, eventType string) (map[Channel]bool, error)

	// Upsert stores the given preference rows, replacing any existing row with
	// the same (user, event type, channel) key. Re-applying the same rows
	// leaves stored state unchanged.
	Upsert(ctx context.Context, prefs []Preference) error
}

// InboxRepository defines the port for the in-app inbox store.
type InboxRepository interface {
	// Create stores a new inbox message and returns the saved entity.
	Create(ctx context.Context, input CreateInboxInput) (*InboxMessage, error)

	// List fetches messages matching the given filter, newest first.
	List(ctx context.Context, filter InboxFilter) ([]*InboxMessage, error)

	// CountUnread returns the unread badge count for a user.
	CountUnread(ctx context.Context, userID string) (int64, error)

	// MarkRead marks a single message as read.
	MarkRead(ctx context.Context, id uuid.UUID, userID string) error

	// MarkAllRead marks all unread messages for a user as read.
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	// PurgeReadOlderThan deletes read messages older than the given number of days.
	PurgeReadOlderThan(ctx context.Context, days int) (int64, error)
}
