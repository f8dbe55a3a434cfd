package domain

import (
	"time"

	"github.com/google/uuid"
)

// InboxMessage is one in-app notification, the read side of the INTERNAL channel.
type InboxMessage struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	EventType string     `json:"event_type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateInboxInput is the write-side DTO for the internal dispatcher.
type CreateInboxInput struct {
	UserID    string
	EventType string
	Title     string
	Body      string
}

// InboxFilter holds query parameters for listing inbox messages.
type InboxFilter struct {
	UserID string
	IsRead *bool
	Limit  int
	Offset int
}
