package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/queue"
	"go.uber.org/zap"
)

const reprocessPageSize = 100

// Reprocessor re-enqueues reminders left pending, for example when the
// server stored a reminder but failed to publish its job.
type Reprocessor struct {
	jobQueue   queue.JobQueue
	repo       database.ReminderRepositoryInterface
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewReprocessor creates a new reprocessor. Reminders pending for longer than
// staleAfter are re-enqueued.
func NewReprocessor(jobQueue queue.JobQueue, repo database.ReminderRepositoryInterface, staleAfter time.Duration, logger *zap.Logger) *Reprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reprocessor{
		jobQueue:   jobQueue,
		repo:       repo,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// RequeueStalePending enqueues a plan_reminder job for every stale pending reminder
// and returns how many were enqueued.
func (r *Reprocessor) RequeueStalePending(ctx context.Context) (int, error) {
	status := models.ReminderStatusPending
	cutoff := r.now().Add(-r.staleAfter)
	enqueued := 0

	for page := 1; ; page++ {
		reminders, total, err := r.repo.List(ctx, &status, page, reprocessPageSize)
		if err != nil {
			return enqueued, fmt.Errorf("failed to list pending reminders: %w", err)
		}

		for _, rem := range reminders {
			if rem.UpdatedAt.After(cutoff) {
				continue
			}
			if err := r.jobQueue.Enqueue(ctx, queue.NewJob(queue.JobTypePlanReminder, rem.ID)); err != nil {
				r.logger.Warn("failed_to_requeue_reminder",
					zap.String("reminder_id", rem.ID.String()),
					zap.Error(err),
				)
				continue
			}
			enqueued++
		}

		if len(reminders) == 0 || page*reprocessPageSize >= total {
			break
		}
	}

	if enqueued > 0 {
		r.logger.Info("requeued_stale_reminders", zap.Int("count", enqueued))
	}
	return enqueued, nil
}

// Start runs RequeueStalePending every interval until ctx is cancelled
func (r *Reprocessor) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RequeueStalePending(ctx); err != nil {
				r.logger.Error("reprocessor_run_failed", zap.Error(err))
			}
		}
	}
}
