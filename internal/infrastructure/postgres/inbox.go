package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundlane/notification/internal/domain"
)

const inboxColumns = "id, user_id, event_type, title, body, is_read, read_at, created_at"

// InboxRepository is the PostgreSQL implementation of domain.InboxRepository.
type InboxRepository struct {
	pool *pgxpool.Pool
}

// NewInboxRepository creates an InboxRepository.
func NewInboxRepository(pool *pgxpool.Pool) *InboxRepository {
	return &InboxRepository{pool: pool}
}

// Create inserts a new inbox message.
func (r *InboxRepository) Create(ctx context.Context, input domain.CreateInboxInput) (*domain.InboxMessage, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO inbox_messages (user_id, event_type, title, body)
		VALUES ($1, $2, $3, $4)
		RETURNING `+inboxColumns,
		input.UserID, input.EventType, input.Title, input.Body)

	msg, err := scanInboxMessage(row)
	if err != nil {
		return nil, fmt.Errorf("insert inbox message: %w", err)
	}
	return msg, nil
}

// List fetches paginated messages for a user, newest first.
func (r *InboxRepository) List(ctx context.Context, f domain.InboxFilter) ([]*domain.InboxMessage, error) {
	query := "SELECT " + inboxColumns + " FROM inbox_messages WHERE user_id = $1"
	args := []any{f.UserID}
	paramIdx := 2

	if f.IsRead != nil {
		query += fmt.Sprintf(" AND is_read = $%d", paramIdx)
		args = append(args, *f.IsRead)
		paramIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", paramIdx, paramIdx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inbox messages: %w", err)
	}
	defer rows.Close()

	var results []*domain.InboxMessage
	for rows.Next() {
		msg, err := scanInboxMessage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, msg)
	}
	return results, rows.Err()
}

// CountUnread returns the unread badge count for a user.
func (r *InboxRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM inbox_messages WHERE user_id = $1 AND is_read = FALSE",
		userID,
	).Scan(&count)
	return count, err
}

// MarkRead marks a single message as read.
func (r *InboxRepository) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inbox_messages SET is_read = TRUE, read_at = $1
		WHERE id = $2 AND user_id = $3 AND is_read = FALSE
	`, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message not found or already read")
	}
	return nil
}

// MarkAllRead marks every unread message for a user as read.
func (r *InboxRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE inbox_messages SET is_read = TRUE, read_at = $1
		WHERE user_id = $2 AND is_read = FALSE
	`, time.Now(), userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeReadOlderThan deletes read messages past the retention window.
func (r *InboxRepository) PurgeReadOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM inbox_messages WHERE is_read = TRUE AND created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge inbox messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanInboxMessage(row scannable) (*domain.InboxMessage, error) {
	var m domain.InboxMessage
	err := row.Scan(&m.ID, &m.UserID, &m.EventType, &m.Title, &m.Body, &m.IsRead, &m.ReadAt, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan inbox message: %w", err)
	}
	return &m, nil
}
