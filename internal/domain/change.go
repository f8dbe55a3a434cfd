package domain

import "time"

// Operation is the kind of row change carried by a ChangeEvent.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ChangeEvent is one row-level change on a watched table. Events are
// ephemeral: they exist only long enough to fan out to currently-connected
// subscribers. A client that was disconnected when the event fired must
// reconcile by re-fetching on reconnect.
type ChangeEvent struct {
	Table      string         `json:"table"`
	Op         Operation      `json:"op"`
	Row        map[string]any `json:"row"`
	OccurredAt time.Time      `json:"occurred_at"`
}
