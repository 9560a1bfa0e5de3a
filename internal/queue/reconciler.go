package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ReconcilerConfig holds the sweep intervals and windows.
type ReconcilerConfig struct {
	MaxRetries       int
	JobTimeout       time.Duration
	CleanupRetention time.Duration
	RetryInterval    time.Duration
	TimeoutInterval  time.Duration
	StatsInterval    time.Duration
	CleanupCron      string
}

// Reconciler runs the background sweeps that keep the desktop queue
// healthy: retrying failed jobs, failing stalled ones, logging statistics,
// and garbage-collecting finished records.
//
// The sweeps are independent and may run concurrently with each other and
// with client-triggered queue operations. There is no cross-sweep ordering:
// the timeout sweep only examines ACCEPTED/PROCESSING jobs, so a job the
// retry sweep just reset to PENDING is never force-failed by it.
type Reconciler struct {
	store    Store
	cfg      ReconcilerConfig
	logger   *slog.Logger
	cron     *cron.Cron
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store Store, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sweep loops and schedules the cleanup cron. It returns
// immediately; call Stop to shut the loops down.
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting queue reconciler",
		slog.Duration("retry_interval", r.cfg.RetryInterval),
		slog.Duration("timeout_interval", r.cfg.TimeoutInterval),
		slog.Duration("job_timeout", r.cfg.JobTimeout),
		slog.String("cleanup_cron", r.cfg.CleanupCron),
	)

	r.cron = cron.New()
	_, err := r.cron.AddFunc(r.cfg.CleanupCron, func() {
		r.CleanupOldJobs(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup cron expression %q: %w", r.cfg.CleanupCron, err)
	}
	r.cron.Start()

	r.spawnSweep(ctx, "retry", r.cfg.RetryInterval, r.RetryFailedJobs)
	r.spawnSweep(ctx, "timeout", r.cfg.TimeoutInterval, r.TimeoutStalledJobs)
	r.spawnSweep(ctx, "stats", r.cfg.StatsInterval, r.LogQueueStats)

	return nil
}

// Stop shuts down the sweep loops and waits for them to finish.
func (r *Reconciler) Stop() {
	r.logger.Info("Stopping queue reconciler...")
	close(r.stopChan)
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.wg.Wait()
	r.logger.Info("Queue reconciler stopped")
}

func (r *Reconciler) spawnSweep(ctx context.Context, name string, interval time.Duration, sweep func(context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopChan:
				r.logger.Info("Sweep stopping", slog.String("sweep", name))
				return
			case <-ctx.Done():
				r.logger.Info("Sweep stopping - context canceled", slog.String("sweep", name))
				return
			case <-ticker.C:
				sweep(ctx)
			}
		}
	}()
}

// RetryFailedJobs resets FAILED jobs under the retry budget back to
// PENDING. One job's update failure must not abort the rest.
func (r *Reconciler) RetryFailedJobs(ctx context.Context) {
	jobs, err := r.store.FindRetryable(ctx, r.cfg.MaxRetries)
	if err != nil {
		r.logger.Error("Retry sweep failed to list jobs", slog.String("error", err.Error()))
		return
	}

	if len(jobs) == 0 {
		return
	}

	r.logger.Info("Found jobs to retry", slog.Int("count", len(jobs)))

	for _, job := range jobs {
		retried := job.Retry()
		if err := r.store.Update(ctx, retried); err != nil {
			r.logger.Error("Failed to retry job",
				slog.String("meeting_id", job.MeetingID),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.Info("Retrying job",
			slog.String("meeting_id", job.MeetingID),
			slog.Int("attempt", retried.RetryCount),
		)
	}
}

// TimeoutStalledJobs force-fails ACCEPTED/PROCESSING jobs whose worker
// claimed them longer ago than the timeout window and never reported back.
// This is the only recovery path for a worker that crashed mid-job.
func (r *Reconciler) TimeoutStalledJobs(ctx context.Context) {
	before := time.Now().UTC().Add(-r.cfg.JobTimeout)

	jobs, err := r.store.FindTimedOut(ctx, before)
	if err != nil {
		r.logger.Error("Timeout sweep failed to list jobs", slog.String("error", err.Error()))
		return
	}

	if len(jobs) == 0 {
		return
	}

	r.logger.Warn("Found timed-out jobs", slog.Int("count", len(jobs)))

	message := fmt.Sprintf("Job timed out after %d minutes", int(r.cfg.JobTimeout.Minutes()))
	for _, job := range jobs {
		if err := r.store.Update(ctx, job.Fail(message)); err != nil {
			r.logger.Error("Failed to time out job",
				slog.String("meeting_id", job.MeetingID),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.Error("Job timed out",
			slog.String("meeting_id", job.MeetingID),
			slog.Time("accepted_at", derefTime(job.AcceptedAt)),
		)
	}
}

// CleanupOldJobs deletes COMPLETED/CANCELLED jobs past the retention
// window, bounding storage growth.
func (r *Reconciler) CleanupOldJobs(ctx context.Context) {
	before := time.Now().UTC().Add(-r.cfg.CleanupRetention)

	deleted, err := r.store.DeleteCompletedBefore(ctx, before)
	if err != nil {
		r.logger.Error("Cleanup sweep failed", slog.String("error", err.Error()))
		return
	}

	if deleted > 0 {
		r.logger.Info("Cleaned up old jobs", slog.Int("deleted", deleted))
	}
}

// LogQueueStats logs counts of in-flight statuses so operators can spot
// jobs stuck past their retry budget.
func (r *Reconciler) LogQueueStats(ctx context.Context) {
	pending, err := r.store.CountByStatus(ctx, JobStatusPending)
	if err != nil {
		r.logger.Error("Stats sweep failed", slog.String("error", err.Error()))
		return
	}
	processing, _ := r.store.CountByStatus(ctx, JobStatusProcessing)
	failed, _ := r.store.CountByStatus(ctx, JobStatusFailed)

	if pending+processing+failed > 0 {
		r.logger.Info("Queue stats",
			slog.Int("pending", pending),
			slog.Int("processing", processing),
			slog.Int("failed", failed),
		)
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
