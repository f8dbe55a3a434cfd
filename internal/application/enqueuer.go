package application

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/domain"
	"github.com/fundlane/notification/internal/preference"
	"github.com/fundlane/notification/internal/template"
)

// ValidationError rejects an enqueue request synchronously. Nothing enters
// the queue; the triggering domain action is never blocked by delivery.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// amountBearing lists the event types whose params must carry a strictly
// positive amount.
var amountBearing = map[string]bool{
	domain.EventDepositApproved:     true,
	domain.EventDepositRejected:     true,
	domain.EventWithdrawalRequested: true,
	domain.EventWithdrawalCompleted: true,
	domain.EventContractMatured:     true,
}

// EnqueueInput is one delivery request from a domain collaborator.
type EnqueueInput struct {
	// UserID identifies the notified user; the internal channel delivers to it.
	UserID string
	// Recipient is the outbound address: email address for the email channel,
	// device token for push.
	Recipient string
	// Params is the typed parameter bag; its EventType selects the template.
	Params domain.EventParams
	// ScheduledFor delays delivery; zero means due immediately.
	ScheduledFor time.Time
}

// EnqueueResult reports created job IDs and per-channel compile failures.
// Partial success is allowed: one channel's template error does not block
// jobs for the other channels.
type EnqueueResult struct {
	JobIDs        []uuid.UUID               `json:"job_ids"`
	ChannelErrors map[domain.Channel]string `json:"channel_errors,omitempty"`
}

// Enqueuer validates delivery requests, resolves preferences, compiles
// templates and writes one durable PENDING job per enabled channel.
type Enqueuer struct {
	jobs      domain.JobRepository
	prefs     *preference.Resolver
	templates *template.Registry
	now       func() time.Time
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(jobs domain.JobRepository, prefs *preference.Resolver, templates *template.Registry) *Enqueuer {
	return &Enqueuer{jobs: jobs, prefs: prefs, templates: templates, now: time.Now}
}

// Enqueue performs the fan-out on write: one job per enabled channel.
// Returns a ValidationError if the request is malformed; per-channel
// template failures are reported in the result, not as an error.
func (e *Enqueuer) Enqueue(ctx context.Context, in EnqueueInput) (*EnqueueResult, error) {
	if in.Params == nil {
		return nil, &ValidationError{Reason: "params are required"}
	}
	eventType := in.Params.EventType()
	if eventType == "" {
		return nil, &ValidationError{Reason: "event type is required"}
	}
	if in.UserID == "" {
		return nil, &ValidationError{Reason: "user id is required"}
	}
	if in.Recipient == "" {
		return nil, &ValidationError{Reason: "recipient is required"}
	}
	if amountBearing[eventType] {
		ab, ok := in.Params.(domain.AmountBearing)
		if !ok || ab.AmountValue() <= 0 {
			return nil, &ValidationError{Reason: "amount must be strictly positive for " + eventType}
		}
	}

	matrix, err := e.prefs.Resolve(ctx, in.UserID, eventType)
	if err != nil {
		return nil, err
	}

	scheduledFor := in.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = e.now()
	}

	result := &EnqueueResult{ChannelErrors: map[domain.Channel]string{}}
	fields := in.Params.Fields()

	var inputs []domain.CreateJobInput
	for _, ch := range matrix.EnabledChannels() {
		recipient, err := e.channelRecipient(ch, in)
		if err != nil {
			result.ChannelErrors[ch] = err.Error()
			continue
		}

		rendered, err := e.templates.Compile(eventType, fields)
		if err != nil {
			result.ChannelErrors[ch] = err.Error()
			continue
		}

		inputs = append(inputs, domain.CreateJobInput{
			EventType:    eventType,
			Channel:      ch,
			Recipient:    recipient,
			UserID:       in.UserID,
			Subject:      rendered.Subject,
			Body:         rendered.Body,
			ScheduledFor: scheduledFor,
		})
	}

	if len(inputs) > 0 {
		ids, err := e.jobs.CreateBatch(ctx, inputs)
		if err != nil {
			return nil, err
		}
		result.JobIDs = ids
	}

	log.Info().
		Str("event_type", eventType).
		Str("user", in.UserID).
		Int("jobs", len(result.JobIDs)).
		Int("channel_errors", len(result.ChannelErrors)).
		Msg("notification enqueued")

	return result, nil
}

// channelRecipient picks and validates the address a channel delivers to.
// The email channel requires a syntactically plausible address; the internal
// channel delivers to the user id regardless of the outbound recipient.
func (e *Enqueuer) channelRecipient(ch domain.Channel, in EnqueueInput) (string, error) {
	switch ch {
	case domain.ChannelEmail:
		if _, err := mail.ParseAddress(in.Recipient); err != nil {
			return "", &ValidationError{Reason: "implausible email address"}
		}
		return in.Recipient, nil
	case domain.ChannelInternal:
		return in.UserID, nil
	default:
		return in.Recipient, nil
	}
}
