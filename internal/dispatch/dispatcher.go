// Package dispatch performs the actual channel sends for claimed jobs.
// Failures are classified as transient (retryable with backoff) or
// permanent (dead-letter immediately, no retry budget spent).
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fundlane/notification/internal/domain"
)

// Dispatcher sends one compiled notification over a single channel.
// Implementations must tolerate being called again for the same job after an
// ambiguous failure: the pipeline is at-least-once, a duplicate send is
// acceptable, a lost one is not.
type Dispatcher interface {
	Send(ctx context.Context, job *domain.Job) error
}

// TransientError marks a failure worth retrying (timeouts, 5xx responses,
// temporary store unavailability).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix (malformed
// recipient rejected by the transport). The worker dead-letters immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(format string, args ...any) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Permanent wraps err as a PermanentError.
func Permanent(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Router selects the dispatcher for a job's channel.
type Router struct {
	byChannel map[domain.Channel]Dispatcher
}

// NewRouter builds a Router over the given per-channel dispatchers.
func NewRouter(email, push, internal Dispatcher) *Router {
	return &Router{byChannel: map[domain.Channel]Dispatcher{
		domain.ChannelEmail:    email,
		domain.ChannelPush:     push,
		domain.ChannelInternal: internal,
	}}
}

// Send routes the job to its channel's dispatcher. An unknown channel is a
// permanent failure: retrying will never make the channel exist.
func (r *Router) Send(ctx context.Context, job *domain.Job) error {
	d, ok := r.byChannel[job.Channel]
	if !ok {
		return Permanent("no dispatcher for channel %q", job.Channel)
	}
	return d.Send(ctx, job)
}
