package application

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/dispatch"
	"github.com/fundlane/notification/internal/domain"
)

// WorkerConfig bounds one worker invocation.
type WorkerConfig struct {
	// BatchSize caps how many due jobs one invocation claims.
	BatchSize int
	// MaxRetries is the attempt ceiling; a job failing this many times is
	// dead-lettered and never selected again.
	MaxRetries int
	// BaseBackoff seeds the exponential retry delay (base * 2^retry).
	BaseBackoff time.Duration
	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
	// DispatchTimeout bounds a single dispatcher call; exceeding it counts
	// as a transient failure.
	DispatchTimeout time.Duration
}

// DefaultWorkerConfig returns production defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:       25,
		MaxRetries:      5,
		BaseBackoff:     30 * time.Second,
		MaxBackoff:      time.Hour,
		DispatchTimeout: 10 * time.Second,
	}
}

// Worker drains due PENDING jobs. It is stateless between invocations and is
// triggered by an external scheduler; multiple invocations may run
// concurrently, relying on the repository's atomic claim to keep each job
// owned by exactly one invocation.
type Worker struct {
	jobs       domain.JobRepository
	dispatcher dispatch.Dispatcher
	bus        dispatch.ChangePublisher
	cfg        WorkerConfig
	now        func() time.Time
}

// NewWorker creates a Worker.
func NewWorker(jobs domain.JobRepository, dispatcher dispatch.Dispatcher, bus dispatch.ChangePublisher, cfg WorkerConfig) *Worker {
	return &Worker{jobs: jobs, dispatcher: dispatcher, bus: bus, cfg: cfg, now: time.Now}
}

// Run claims one batch of due jobs, dispatches them in parallel and records
// the outcome of each. The batch is fully drained before Run returns; a
// failing job never aborts the rest of the batch. Returns how many jobs
// were claimed.
func (w *Worker) Run(ctx context.Context) (int, error) {
	claimed, err := w.jobs.ClaimDue(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	var wg sync.WaitGroup
	for _, job := range claimed {
		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			w.process(ctx, job)
		}(job)
	}
	wg.Wait()

	log.Info().Int("claimed", len(claimed)).Msg("worker batch drained")
	return len(claimed), nil
}

// process dispatches one claimed job and applies the status transition:
// PROCESSING → SENT on success, → PENDING with backoff on a transient
// failure while attempts remain, → FAILED on a permanent failure or an
// exhausted retry budget.
func (w *Worker) process(ctx context.Context, job *domain.Job) {
	dctx, cancel := context.WithTimeout(ctx, w.cfg.DispatchTimeout)
	err := w.dispatcher.Send(dctx, job)
	cancel()

	switch {
	case err == nil:
		if err := w.jobs.MarkSent(ctx, job.ID, w.now()); err != nil {
			log.Error().Err(err).Str("job", job.ID.String()).Msg("mark sent failed")
			return
		}
		w.publishStatus(job, domain.StatusSent)
		log.Info().
			Str("job", job.ID.String()).
			Str("channel", string(job.Channel)).
			Int("retry_count", job.RetryCount).
			Msg("notification sent")

	case dispatch.IsPermanent(err):
		if err2 := w.jobs.MarkFailed(ctx, job.ID, job.RetryCount, err.Error(), w.now()); err2 != nil {
			log.Error().Err(err2).Str("job", job.ID.String()).Msg("mark failed failed")
			return
		}
		w.publishStatus(job, domain.StatusFailed)
		log.Warn().
			Err(err).
			Str("job", job.ID.String()).
			Str("channel", string(job.Channel)).
			Msg("notification dead-lettered on permanent error")

	default:
		retry := job.RetryCount + 1
		if retry >= w.cfg.MaxRetries {
			if err2 := w.jobs.MarkFailed(ctx, job.ID, retry, err.Error(), w.now()); err2 != nil {
				log.Error().Err(err2).Str("job", job.ID.String()).Msg("mark failed failed")
				return
			}
			w.publishStatus(job, domain.StatusFailed)
			log.Warn().
				Err(err).
				Str("job", job.ID.String()).
				Int("retries", retry).
				Msg("notification dead-lettered after exhausting retries")
			return
		}

		next := w.now().Add(w.backoff(retry))
		if err2 := w.jobs.Reschedule(ctx, job.ID, retry, err.Error(), next); err2 != nil {
			log.Error().Err(err2).Str("job", job.ID.String()).Msg("reschedule failed")
			return
		}
		log.Info().
			Err(err).
			Str("job", job.ID.String()).
			Int("retry", retry).
			Time("next_attempt", next).
			Msg("notification rescheduled with backoff")
	}
}

// backoff computes base * 2^retry, capped at MaxBackoff.
func (w *Worker) backoff(retry int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return d
}

func (w *Worker) publishStatus(job *domain.Job, status domain.JobStatus) {
	w.bus.Publish(domain.ChangeEvent{
		Table: "notification_jobs",
		Op:    domain.OpUpdate,
		Row: map[string]any{
			"id":         job.ID.String(),
			"owner":      job.UserID,
			"event_type": job.EventType,
			"channel":    string(job.Channel),
			"status":     string(status),
		},
		OccurredAt: w.now(),
	})
}
