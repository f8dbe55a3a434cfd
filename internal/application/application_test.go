package application_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fundlane/notification/internal/domain"
)

// memJobs is an in-memory JobRepository. ClaimDue holds the lock for the
// whole select-and-flip, mirroring the conditional-update atomicity the
// postgres implementation gets from FOR UPDATE SKIP LOCKED.
type memJobs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Job
}

func newMemJobs() *memJobs {
	return &memJobs{rows: make(map[uuid.UUID]*domain.Job)}
}

func (m *memJobs) CreateBatch(_ context.Context, inputs []domain.CreateJobInput) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		id := uuid.New()
		m.rows[id] = &domain.Job{
			ID:           id,
			EventType:    in.EventType,
			Channel:      in.Channel,
			Recipient:    in.Recipient,
			UserID:       in.UserID,
			Subject:      in.Subject,
			Body:         in.Body,
			Status:       domain.StatusPending,
			ScheduledFor: in.ScheduledFor,
			CreatedAt:    time.Now(),
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memJobs) ClaimDue(_ context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.Job
	for _, j := range m.rows {
		if j.Status == domain.StatusPending && !j.ScheduledFor.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool { return due[i].ScheduledFor.Before(due[k].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.Job, 0, len(due))
	for _, j := range due {
		j.Status = domain.StatusProcessing
		copied := *j
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (m *memJobs) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.rows[id]
	j.Status = domain.StatusSent
	j.ProcessedAt = &at
	return nil
}

func (m *memJobs) Reschedule(_ context.Context, id uuid.UUID, retryCount int, lastError string, scheduledFor time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.rows[id]
	j.Status = domain.StatusPending
	j.RetryCount = retryCount
	j.LastError = lastError
	j.ScheduledFor = scheduledFor
	return nil
}

func (m *memJobs) MarkFailed(_ context.Context, id uuid.UUID, retryCount int, lastError string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.rows[id]
	j.Status = domain.StatusFailed
	j.RetryCount = retryCount
	j.LastError = lastError
	j.ProcessedAt = &at
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *m.rows[id]
	return &copied, nil
}

func (m *memJobs) ListFailed(_ context.Context, limit, offset int) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Job
	for _, j := range m.rows {
		if j.Status == domain.StatusFailed {
			copied := *j
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memJobs) PurgeTerminalOlderThan(_ context.Context, days int) (int64, error) {
	return 0, nil
}

// memPrefRepo stores preference overrides for enqueuer tests.
type memPrefRepo struct {
	mu   sync.Mutex
	rows map[string]bool
}

func newMemPrefRepo() *memPrefRepo {
	return &memPrefRepo{rows: make(map[string]bool)}
}

func (m *memPrefRepo) Overrides(_ context.Context, userID, eventType string) (map[domain.Channel]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.Channel]bool)
	for _, ch := range domain.AllChannels {
		if v, ok := m.rows[userID+"|"+eventType+"|"+string(ch)]; ok {
			out[ch] = v
		}
	}
	return out, nil
}

func (m *memPrefRepo) Upsert(_ context.Context, prefs []domain.Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range prefs {
		m.rows[p.UserID+"|"+p.EventType+"|"+string(p.Channel)] = p.Enabled
	}
	return nil
}

// nopBus swallows change events.
type nopBus struct{}

func (nopBus) Publish(domain.ChangeEvent) {}

// recordBus captures change events for assertions.
type recordBus struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (b *recordBus) Publish(e domain.ChangeEvent) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}
