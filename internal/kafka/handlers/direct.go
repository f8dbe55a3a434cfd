package handlers

import (
	"encoding/json"
	"time"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/domain"
)

func init() {
	RegisterDirect("notification-commands", handleDirectCommand)
}

// handleDirectCommand lets backend services request an arbitrary
// notification without a dedicated event handler. Params arrive untyped;
// the enqueuer still enforces template and amount validation, and an
// optional scheduledFor supports delayed delivery.
func handleDirectCommand(data []byte) *application.EnqueueInput {
	var cmd struct {
		CommandID    string            `json:"commandId"`
		EventType    string            `json:"eventType"`
		UserID       string            `json:"userId"`
		Recipient    string            `json:"recipient"`
		Params       map[string]string `json:"params"`
		ScheduledFor string            `json:"scheduledFor"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil
	}
	if cmd.EventType == "" || cmd.UserID == "" {
		return nil
	}

	in := &application.EnqueueInput{
		UserID:    cmd.UserID,
		Recipient: cmd.Recipient,
		Params:    domain.RawParams{Event: cmd.EventType, Values: cmd.Params},
	}
	if cmd.ScheduledFor != "" {
		if at, err := time.Parse(time.RFC3339, cmd.ScheduledFor); err == nil {
			in.ScheduledFor = at
		}
	}
	return in
}
