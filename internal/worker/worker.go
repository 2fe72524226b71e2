// Package worker runs the background side of the engine: the cache
// invalidation consumer and the scheduled warming and metrics jobs.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/cachewarm"
	"github.com/fundmatch/backend/pkg/queue"
)

// Invalidator evicts explanation cache entries.
type Invalidator interface {
	InvalidateOrganization(ctx context.Context, orgID uuid.UUID) (int, error)
	InvalidateAnnouncement(ctx context.Context, annID uuid.UUID) (int, error)
}

// Snapshotter persists a metrics snapshot.
type Snapshotter interface {
	Snapshot(ctx context.Context) error
}

// Warmer runs a cache warming pass.
type Warmer interface {
	Warm(ctx context.Context, p cachewarm.Params) (cachewarm.Report, error)
}

// JobQueue is the queue surface the consumer needs. *queue.Queue satisfies
// it; tests substitute a fake.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Worker consumes invalidation jobs and drives the cron schedule.
type Worker struct {
	queue       JobQueue
	invalidator Invalidator
	warmer      Warmer
	snapshotter Snapshotter
	retryDelay  time.Duration
	retries     sync.WaitGroup
	logger      *zap.Logger
}

func New(q JobQueue, invalidator Invalidator, warmer Warmer, snapshotter Snapshotter, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:       q,
		invalidator: invalidator,
		warmer:      warmer,
		snapshotter: snapshotter,
		retryDelay:  queue.RetryBackoff,
		logger:      logger,
	}
}

// RunConsumer processes invalidation jobs until ctx is cancelled. Failed jobs
// are re-enqueued after a delay without holding up the consumer loop; after
// the retry budget they land in the DLQ as the staleness alert.
func (w *Worker) RunConsumer(ctx context.Context) {
	w.logger.Info("invalidation consumer started")
	defer w.retries.Wait()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("invalidation consumer stopped")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("invalidation consumer stopped")
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	var payload queue.InvalidationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Malformed payloads never succeed on retry.
		w.logger.Error("dropping undecodable job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	var evicted int
	var err error
	switch job.Type {
	case queue.JobTypeInvalidateOrganization:
		evicted, err = w.invalidator.InvalidateOrganization(ctx, payload.OrganizationID)
	case queue.JobTypeInvalidateAnnouncement:
		evicted, err = w.invalidator.InvalidateAnnouncement(ctx, payload.AnnouncementID)
	default:
		w.logger.Error("dropping job of unknown type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return
	}

	if err != nil {
		w.logger.Warn("invalidation failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		var delay time.Duration
		if job.Attempt+1 < queue.MaxRetries {
			delay = w.retryDelay
		}
		w.scheduleRetry(ctx, job, delay)
		return
	}

	w.logger.Info("invalidation processed",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("reason", payload.Reason),
		zap.Int("evicted", evicted),
	)
}

// scheduleRetry re-enqueues the job off the consumer goroutine, so one
// failing job never stalls the rest of the queue. Shutdown collapses the
// delay instead of dropping the job, and the enqueue itself ignores
// cancellation so the retry survives a mid-wait shutdown.
func (w *Worker) scheduleRetry(ctx context.Context, job *queue.Job, delay time.Duration) {
	w.retries.Add(1)
	go func() {
		defer w.retries.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
			}
		}
		if err := w.queue.Retry(context.WithoutCancel(ctx), job); err != nil {
			w.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		}
	}()
}

// StartCron registers the scheduled jobs and starts the scheduler: an hourly
// smart warming pass and a daily metrics snapshot at 03:00 Korea time, after
// the nightly announcement ingestion settles.
func (w *Worker) StartCron(ctx context.Context) (*cron.Cron, error) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return nil, err
	}
	c := cron.New(cron.WithLocation(seoul))

	if _, err := c.AddFunc("0 * * * *", func() {
		if _, err := w.warmer.Warm(ctx, cachewarm.Params{Strategy: cachewarm.StrategySmart}); err != nil {
			w.logger.Error("scheduled cache warm failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := c.AddFunc("0 3 * * *", func() {
		if err := w.snapshotter.Snapshot(ctx); err != nil {
			w.logger.Error("scheduled metrics snapshot failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	c.Start()
	w.logger.Info("cron scheduler started",
		zap.String("warm_schedule", "0 * * * *"),
		zap.String("snapshot_schedule", "0 3 * * *"),
	)
	return c, nil
}
