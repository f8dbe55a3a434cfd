package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery medium for a notification.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelPush     Channel = "PUSH"
	ChannelInternal Channel = "INTERNAL"
)

// AllChannels lists every supported channel in a stable order.
var AllChannels = []Channel{ChannelEmail, ChannelPush, ChannelInternal}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelInternal:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a queued delivery job.
// Transitions are monotonic: PENDING → PROCESSING → {SENT | FAILED},
// with PROCESSING → PENDING allowed for retries while attempts remain.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusSent       JobStatus = "SENT"
	StatusFailed     JobStatus = "FAILED"
)

// Job is the queue's unit of work: one compiled notification bound to one channel.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	EventType    string     `json:"event_type"`
	Channel      Channel    `json:"channel"`
	Recipient    string     `json:"recipient"`
	UserID       string     `json:"user_id"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	Status       JobStatus  `json:"status"`
	RetryCount   int        `json:"retry_count"`
	LastError    string     `json:"last_error,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// CreateJobInput is the enqueue-side DTO. Jobs are always created PENDING.
type CreateJobInput struct {
	EventType    string
	Channel      Channel
	Recipient    string
	UserID       string
	Subject      string
	Body         string
	ScheduledFor time.Time
}

// ChannelMatrix is the resolved per-channel enablement for one (user, event type).
type ChannelMatrix struct {
	Email    bool `json:"email"`
	Push     bool `json:"push"`
	Internal bool `json:"internal"`
}

// Enabled reports whether the given channel is on in the matrix.
func (m ChannelMatrix) Enabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return m.Email
	case ChannelPush:
		return m.Push
	case ChannelInternal:
		return m.Internal
	}
	return false
}

// EnabledChannels returns the channels switched on, in AllChannels order.
func (m ChannelMatrix) EnabledChannels() []Channel {
	out := make([]Channel, 0, len(AllChannels))
	for _, c := range AllChannels {
		if m.Enabled(c) {
			out = append(out, c)
		}
	}
	return out
}

// PartialMatrix carries per-channel overrides for a preference update.
// Nil fields mean "leave the stored value (or default) untouched".
type PartialMatrix struct {
	Email    *bool `json:"email,omitempty"`
	Push     *bool `json:"push,omitempty"`
	Internal *bool `json:"internal,omitempty"`
}

// Preference is one stored override row, keyed by (user, event type, channel).
type Preference struct {
	UserID    string  `json:"user_id"`
	EventType string  `json:"event_type"`
	Channel   Channel `json:"channel"`
	Enabled   bool    `json:"enabled"`
}
