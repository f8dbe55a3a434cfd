package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundlane/notification/internal/domain"
)

const jobColumns = "id, event_type, channel, recipient, user_id, subject, body, status, retry_count, last_error, scheduled_for, created_at, processed_at"

// JobRepository is the PostgreSQL implementation of domain.JobRepository.
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a JobRepository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// CreateBatch inserts the jobs in one multi-row statement and returns their IDs.
func (r *JobRepository) CreateBatch(ctx context.Context, inputs []domain.CreateJobInput) ([]uuid.UUID, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	const paramsPerRow = 7
	args := make([]any, 0, len(inputs)*paramsPerRow)
	values := make([]string, 0, len(inputs))
	for i, in := range inputs {
		base := i * paramsPerRow
		values = append(values, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			in.EventType, string(in.Channel), in.Recipient, in.UserID,
			in.Subject, in.Body, in.ScheduledFor,
		)
	}

	query := "INSERT INTO notification_jobs (event_type, channel, recipient, user_id, subject, body, scheduled_for) VALUES " +
		strings.Join(values, ",") + " RETURNING id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch insert jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimDue flips up to limit due PENDING jobs to PROCESSING and returns them.
// FOR UPDATE SKIP LOCKED makes the select-and-flip atomic across concurrent
// worker invocations: a row locked by one claim is skipped by the others, so
// no job is ever handed to two workers.
func (r *JobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE notification_jobs SET status = $1
		WHERE id IN (
			SELECT id FROM notification_jobs
			WHERE status = $2 AND scheduled_for <= $3
			ORDER BY scheduled_for ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		string(domain.StatusProcessing), string(domain.StatusPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkSent records terminal success. The status guard keeps the transition
// monotonic: only the claiming worker's PROCESSING row can become SENT.
func (r *JobRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs SET status = $1, processed_at = $2
		WHERE id = $3 AND status = $4
	`, string(domain.StatusSent), at, id, string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not in processing state", id)
	}
	return nil
}

// Reschedule puts a PROCESSING job back to PENDING with backoff bookkeeping.
func (r *JobRepository) Reschedule(ctx context.Context, id uuid.UUID, retryCount int, lastError string, scheduledFor time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = $1, retry_count = $2, last_error = $3, scheduled_for = $4
		WHERE id = $5 AND status = $6
	`, string(domain.StatusPending), retryCount, lastError, scheduledFor, id, string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not in processing state", id)
	}
	return nil
}

// MarkFailed dead-letters a PROCESSING job.
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, lastError string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_jobs
		SET status = $1, retry_count = $2, last_error = $3, processed_at = $4
		WHERE id = $5 AND status = $6
	`, string(domain.StatusFailed), retryCount, lastError, at, id, string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not in processing state", id)
	}
	return nil
}

// GetByID fetches a single job.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+jobColumns+" FROM notification_jobs WHERE id = $1", id)
	return scanJob(row)
}

// ListFailed returns dead-lettered jobs for the audit surface.
func (r *JobRepository) ListFailed(ctx context.Context, limit, offset int) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+jobColumns+" FROM notification_jobs WHERE status = $1 ORDER BY processed_at DESC LIMIT $2 OFFSET $3",
		string(domain.StatusFailed), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// PurgeTerminalOlderThan deletes SENT and FAILED jobs past the retention window.
func (r *JobRepository) PurgeTerminalOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notification_jobs
		WHERE status IN ($1, $2) AND created_at < $3
	`, string(domain.StatusSent), string(domain.StatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*domain.Job, error) {
	var j domain.Job
	var channel, status string
	err := row.Scan(
		&j.ID, &j.EventType, &channel, &j.Recipient, &j.UserID, &j.Subject, &j.Body,
		&status, &j.RetryCount, &j.LastError, &j.ScheduledFor, &j.CreatedAt, &j.ProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.Channel = domain.Channel(channel)
	j.Status = domain.JobStatus(status)
	return &j, nil
}
