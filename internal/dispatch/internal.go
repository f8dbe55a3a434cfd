package dispatch

import (
	"context"
	"time"

	"github.com/fundlane/notification/internal/domain"
)

// ChangePublisher pushes row-change events to connected realtime subscribers.
// Implemented by realtime.Hub.
type ChangePublisher interface {
	Publish(event domain.ChangeEvent)
}

// InternalDispatcher writes the notification into the in-app inbox store and
// announces the new row on the change bus so connected clients refresh their
// inbox views without polling.
type InternalDispatcher struct {
	inbox domain.InboxRepository
	bus   ChangePublisher
}

// NewInternalDispatcher creates an InternalDispatcher.
func NewInternalDispatcher(inbox domain.InboxRepository, bus ChangePublisher) *InternalDispatcher {
	return &InternalDispatcher{inbox: inbox, bus: bus}
}

// Send inserts the inbox row. Store failures are transient: the insert has no
// external side effect, so re-running it after an ambiguous failure is safe.
func (d *InternalDispatcher) Send(ctx context.Context, job *domain.Job) error {
	msg, err := d.inbox.Create(ctx, domain.CreateInboxInput{
		UserID:    job.UserID,
		EventType: job.EventType,
		Title:     job.Subject,
		Body:      job.Body,
	})
	if err != nil {
		return Transient("inbox store: %v", err)
	}

	d.bus.Publish(domain.ChangeEvent{
		Table: "inbox_messages",
		Op:    domain.OpInsert,
		Row: map[string]any{
			"id":         msg.ID.String(),
			"owner":      msg.UserID,
			"event_type": msg.EventType,
			"title":      msg.Title,
		},
		OccurredAt: time.Now(),
	})
	return nil
}
