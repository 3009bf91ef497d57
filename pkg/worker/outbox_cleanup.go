package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

// OutboxCleanup deletes processed events once they are older than the
// retention window.
type OutboxCleanup struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	scheduler *gocron.Scheduler
	now       func() time.Time
}

func NewOutboxCleanup(repo repository.OutboxRepository, retention, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleanup {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &OutboxCleanup{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
		scheduler: s,
		now:       time.Now,
	}
}

// Start schedules the cleanup job. It runs once immediately.
func (w *OutboxCleanup) Start(ctx context.Context) error {
	_, err := w.scheduler.Every(w.interval).StartImmediately().Do(func() {
		if _, err := w.Cleanup(ctx); err != nil {
			w.logger.Error(err, "Outbox cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule outbox cleanup: %w", err)
	}
	w.scheduler.StartAsync()
	return nil
}

func (w *OutboxCleanup) Stop() {
	w.scheduler.Stop()
}

// Cleanup removes processed events older than the retention window.
func (w *OutboxCleanup) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "error").Inc()
		return 0, fmt.Errorf("failed to clean up outbox events: %w", err)
	}
	w.metrics.DatabaseOperations.WithLabelValues("delete_processed_events", "success").Inc()
	w.metrics.OutboxEventsCleaned.Add(float64(rows))

	w.logger.Info("Cleaned up outbox events", "deleted", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
