package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/services/estimator"
	"github.com/benvon/smart-reminders/internal/services/parser"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"go.uber.org/zap"
)

// Planner turns reminder text into a plan (implemented by *reminder.Orchestrator)
type Planner interface {
	Plan(ctx context.Context, text string) (*reminder.Plan, error)
}

// JobRecorder counts job outcomes (implemented by *metrics.Metrics)
type JobRecorder interface {
	IncJob(outcome string)
}

// Job outcomes reported to the JobRecorder
const (
	OutcomeScheduled          = "scheduled"
	OutcomeNeedsClarification = "needs_clarification"
	OutcomeFailed             = "failed"
	OutcomeRetried            = "retried"
)

// ReminderPlanner processes plan_reminder jobs
type ReminderPlanner struct {
	planner  Planner
	repo     database.ReminderRepositoryInterface
	jobQueue queue.JobQueue // For re-enqueueing jobs with delays
	logger   *zap.Logger
	recorder JobRecorder
}

// NewReminderPlanner creates a new reminder planner. jobQueue and recorder may be nil.
func NewReminderPlanner(
	planner Planner,
	repo database.ReminderRepositoryInterface,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
	recorder JobRecorder,
) *ReminderPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderPlanner{
		planner:  planner,
		repo:     repo,
		jobQueue: jobQueue,
		logger:   logger,
		recorder: recorder,
	}
}

// permanentError marks failures that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// ProcessReminderJob plans one stored reminder and persists the outcome.
// Parse errors mark the reminder failed and are not retried; an unknown
// duration marks it needs_clarification.
func (p *ReminderPlanner) ProcessReminderJob(ctx context.Context, job *queue.Job) (string, error) {
	rem, err := p.repo.GetByID(ctx, job.ReminderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return OutcomeFailed, &permanentError{err: err}
		}
		return "", fmt.Errorf("failed to get reminder: %w", err)
	}

	switch rem.Status {
	case models.ReminderStatusScheduled, models.ReminderStatusNeedsClarification:
		p.logger.Debug("reminder_already_planned",
			zap.String("reminder_id", rem.ID.String()),
			zap.String("status", string(rem.Status)),
		)
		return string(rem.Status), nil
	}

	if rem.Status == models.ReminderStatusPending {
		rem.Status = models.ReminderStatusProcessing
		if err := p.repo.Update(ctx, rem); err != nil {
			p.logger.Warn("failed_to_mark_reminder_processing",
				zap.String("reminder_id", rem.ID.String()),
				zap.Error(err),
			)
		}
	}

	plan, err := p.planner.Plan(ctx, rem.OriginalText)

	var clarification *reminder.ClarificationRequiredError
	var parseErr *parser.ParseError
	switch {
	case err == nil:
		applyPlan(rem, plan)
		rem.Status = models.ReminderStatusScheduled
		rem.LastError = ""
	case errors.As(err, &clarification):
		rem.Description = clarification.Description
		rem.Location = clarification.Location
		if !clarification.DueAt.IsZero() {
			due := clarification.DueAt
			rem.DueAt = &due
		}
		rem.Status = models.ReminderStatusNeedsClarification
		rem.LastError = clarification.Question
	case errors.As(err, &parseErr), errors.Is(err, scheduler.ErrInvalidInput):
		rem.Status = models.ReminderStatusFailed
		rem.LastError = err.Error()
		if updateErr := p.repo.Update(ctx, rem); updateErr != nil {
			return "", fmt.Errorf("failed to store failed reminder: %w", updateErr)
		}
		return OutcomeFailed, &permanentError{err: err}
	default:
		// Transient failure: leave the reminder pending for the retry
		rem.Status = models.ReminderStatusPending
		rem.LastError = err.Error()
		if updateErr := p.repo.Update(ctx, rem); updateErr != nil {
			p.logger.Warn("failed_to_reset_reminder_status",
				zap.String("reminder_id", rem.ID.String()),
				zap.Error(updateErr),
			)
		}
		return "", fmt.Errorf("failed to plan reminder: %w", err)
	}

	if err := p.repo.Update(ctx, rem); err != nil {
		return "", fmt.Errorf("failed to update reminder: %w", err)
	}

	p.logger.Info("reminder_job_completed",
		zap.String("reminder_id", rem.ID.String()),
		zap.String("status", string(rem.Status)),
		zap.Int("reminder_count", len(rem.Schedule)),
	)
	return string(rem.Status), nil
}

func applyPlan(rem *models.Reminder, plan *reminder.Plan) {
	due := plan.DueAt
	minutes := plan.PrepMinutes
	rem.Description = plan.Description
	rem.Location = plan.Location
	rem.DueAt = &due
	rem.PrepMinutes = &minutes
	rem.DurationSource = plan.DurationSource
	rem.Schedule = plan.Reminders
}

// ProcessJob dispatches a queue message by job type and acknowledges it
func (p *ReminderPlanner) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if job == nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_empty_message", zap.Error(nackErr))
		}
		return fmt.Errorf("message carries no job")
	}

	switch job.Type {
	case queue.JobTypePlanReminder:
		outcome, err := p.ProcessReminderJob(ctx, job)
		if err != nil {
			return p.handleJobError(ctx, msg, job, err)
		}
		p.record(outcome)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		// Unknown job type, send to DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError applies the retry policy: permanent errors are acked, other
// errors are acked and re-enqueued with a backoff delay until MaxRetries, then
// dead-lettered.
func (p *ReminderPlanner) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	var permanent *permanentError
	if errors.As(err, &permanent) {
		p.record(OutcomeFailed)
		p.logger.Warn("reminder_job_failed_permanently",
			zap.String("job_id", job.ID.String()),
			zap.String("reminder_id", job.ReminderID.String()),
			zap.Error(err),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			p.logger.Warn("failed_to_ack_job", zap.Error(ackErr))
		}
		return fmt.Errorf("job failed permanently: %w", permanent.err)
	}

	limited := estimator.IsQuotaError(err) || estimator.IsRateLimitError(err)

	// A nacked delivery comes back unchanged, so the retry count only
	// survives when the next attempt is published as a new job. Without a
	// publisher there is no bounded retry and the job is dead-lettered.
	if job.CanRetry() && p.jobQueue != nil {
		retryDelay := estimator.GetRetryDelay(err, job.RetryCount)
		delayed := job.Retry(retryDelay)
		if ackErr := msg.Ack(); ackErr != nil {
			p.logger.Warn("failed_to_ack_job_before_reenqueue", zap.Error(ackErr))
		}
		if enqueueErr := p.jobQueue.Enqueue(ctx, delayed); enqueueErr != nil {
			p.logger.Error("failed_to_reenqueue_job",
				zap.String("job_id", job.ID.String()),
				zap.Error(enqueueErr),
			)
			p.markFailed(ctx, job, err)
			return fmt.Errorf("failed to re-enqueue job: %w", enqueueErr)
		}
		p.record(OutcomeRetried)
		p.logger.Warn("job_reenqueued_with_delay",
			zap.String("job_id", job.ID.String()),
			zap.String("reminder_id", job.ReminderID.String()),
			zap.Duration("retry_delay", retryDelay),
			zap.Int("retry_count", delayed.RetryCount),
			zap.Int("max_retries", delayed.MaxRetries),
			zap.Bool("quota_exceeded", estimator.IsQuotaError(err)),
			zap.Error(err),
		)
		if limited {
			return nil
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	p.markFailed(ctx, job, err)
	p.logger.Error("reminder_job_failed_sending_to_dlq",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		p.logger.Warn("failed_to_nack_job_to_dlq", zap.Error(nackErr))
	}
	return fmt.Errorf("job dead-lettered after %d retries: %w", job.RetryCount, err)
}

func (p *ReminderPlanner) markFailed(ctx context.Context, job *queue.Job, cause error) {
	p.record(OutcomeFailed)
	rem, err := p.repo.GetByID(ctx, job.ReminderID)
	if err != nil {
		return
	}
	rem.Status = models.ReminderStatusFailed
	rem.LastError = cause.Error()
	if err := p.repo.Update(ctx, rem); err != nil {
		p.logger.Warn("failed_to_mark_reminder_failed",
			zap.String("reminder_id", rem.ID.String()),
			zap.Error(err),
		)
	}
}

func (p *ReminderPlanner) record(outcome string) {
	if p.recorder != nil && outcome != "" {
		p.recorder.IncJob(outcome)
	}
}
