package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/services/estimator"
	"github.com/benvon/smart-reminders/internal/services/parser"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"github.com/google/uuid"
)

func pendingReminder(text string) *models.Reminder {
	return &models.Reminder{
		ID:           uuid.New(),
		OriginalText: text,
		Status:       models.ReminderStatusPending,
	}
}

func TestReminderPlanner_ProcessJob_Scheduled(t *testing.T) {
	t.Parallel()

	due := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)
	rem := pendingReminder("take out trash tomorrow at 1pm for an hour")
	repo := newMockReminderRepo(rem)
	recorder := &mockJobRecorder{}

	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		if text != rem.OriginalText {
			t.Errorf("Expected original text, got %q", text)
		}
		reminders, _ := scheduler.Generate(due, 60)
		return &reminder.Plan{
			Description:    "take out trash",
			DueAt:          due,
			PrepMinutes:    60,
			DurationSource: models.DurationSourceParsed,
			PrepCategory:   scheduler.PrepUnderFourHours,
			Reminders:      reminders,
		}, nil
	}}

	p := NewReminderPlanner(planner, repo, &mockJobQueue{}, nil, recorder)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, rem.ID)}

	if err := p.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() unexpected error: %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Errorf("Expected message acked, got acked=%v nacked=%v", msg.acked, msg.nacked)
	}

	stored := repo.get(rem.ID)
	if stored.Status != models.ReminderStatusScheduled {
		t.Errorf("Expected scheduled, got %s", stored.Status)
	}
	if len(stored.Schedule) != 3 {
		t.Errorf("Expected 3 reminders, got %d", len(stored.Schedule))
	}
	if stored.PrepMinutes == nil || *stored.PrepMinutes != 60 || stored.DueAt == nil || !stored.DueAt.Equal(due) {
		t.Errorf("Expected due/prep to be stored, got %+v", stored)
	}
	if len(repo.updates) < 2 || repo.updates[0] != models.ReminderStatusProcessing {
		t.Errorf("Expected processing then scheduled updates, got %v", repo.updates)
	}
	if recorder.outcomes[OutcomeScheduled] != 1 {
		t.Errorf("Expected one scheduled outcome, got %v", recorder.outcomes)
	}
}

func TestReminderPlanner_ProcessJob_NeedsClarification(t *testing.T) {
	t.Parallel()

	due := time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC)
	rem := pendingReminder("call the bank friday")
	repo := newMockReminderRepo(rem)
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		return nil, &reminder.ClarificationRequiredError{
			Description: "call the bank",
			Question:    reminder.DefaultClarificationQuestion,
			DueAt:       due,
			Location:    "Main Street",
		}
	}}

	p := NewReminderPlanner(planner, repo, nil, nil, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, rem.ID)}

	if err := p.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() unexpected error: %v", err)
	}
	if !msg.acked {
		t.Error("Expected message acked")
	}
	stored := repo.get(rem.ID)
	if stored.Status != models.ReminderStatusNeedsClarification {
		t.Errorf("Expected needs_clarification, got %s", stored.Status)
	}
	if stored.LastError != reminder.DefaultClarificationQuestion || stored.Description != "call the bank" {
		t.Errorf("Expected question and description stored, got %+v", stored)
	}
	if stored.DueAt == nil || !stored.DueAt.Equal(due) {
		t.Errorf("Expected due time %v stored, got %v", due, stored.DueAt)
	}
	if stored.Location != "Main Street" {
		t.Errorf("Expected location stored, got %q", stored.Location)
	}
}

func TestReminderPlanner_ClarificationCanBeAnswered(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("call the bank 2024-01-05 at 09:30")
	repo := newMockReminderRepo(rem)
	orchestrator := reminder.NewOrchestrator(parser.New(parser.WithLocation(time.UTC)), nil)

	p := NewReminderPlanner(orchestrator, repo, nil, nil, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, rem.ID)}
	if err := p.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() unexpected error: %v", err)
	}

	stored := repo.get(rem.ID)
	if stored.Status != models.ReminderStatusNeedsClarification {
		t.Fatalf("Expected needs_clarification, got %s", stored.Status)
	}
	want := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	if stored.DueAt == nil || !stored.DueAt.Equal(want) {
		t.Fatalf("Expected due time %v, got %v", want, stored.DueAt)
	}

	plan, err := orchestrator.Reschedule(*stored.DueAt, 60)
	if err != nil {
		t.Fatalf("Reschedule() unexpected error: %v", err)
	}
	if len(plan.Reminders) != 3 {
		t.Fatalf("Expected 3 reminders, got %v", plan.Reminders)
	}
	leadFound := false
	for _, at := range plan.Reminders {
		if at.Equal(want.Add(-4 * time.Hour)) {
			leadFound = true
		}
	}
	if !leadFound {
		t.Errorf("Expected a reminder four hours before %v, got %v", want, plan.Reminders)
	}
}

func TestReminderPlanner_ProcessJob_ParseErrorIsPermanent(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("buy groceries")
	repo := newMockReminderRepo(rem)
	recorder := &mockJobRecorder{}
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		return nil, &parser.ParseError{Text: text, Err: parser.ErrNoDateTime}
	}}

	p := NewReminderPlanner(planner, repo, &mockJobQueue{}, nil, recorder)
	job := queue.NewJob(queue.JobTypePlanReminder, rem.ID)
	msg := &mockMessage{job: job}

	err := p.ProcessJob(context.Background(), msg)
	if !errors.Is(err, parser.ErrNoDateTime) {
		t.Fatalf("Expected parse error, got %v", err)
	}
	if !msg.acked || msg.nacked {
		t.Error("Expected permanent failure to be acked, not retried")
	}
	if job.RetryCount != 0 {
		t.Errorf("Expected no retries, got %d", job.RetryCount)
	}
	if stored := repo.get(rem.ID); stored.Status != models.ReminderStatusFailed || stored.LastError == "" {
		t.Errorf("Expected failed status with error, got %+v", stored)
	}
	if recorder.outcomes[OutcomeFailed] != 1 {
		t.Errorf("Expected one failed outcome, got %v", recorder.outcomes)
	}
}

func TestReminderPlanner_ProcessJob_MissingReminder(t *testing.T) {
	t.Parallel()

	p := NewReminderPlanner(&mockPlanner{}, newMockReminderRepo(), nil, nil, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, uuid.New())}

	if err := p.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for missing reminder")
	}
	if !msg.acked {
		t.Error("Expected missing reminder job to be acked")
	}
}

func TestReminderPlanner_ProcessJob_TransientErrorRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		retryCount   int
		wantEnqueued bool
		wantStatus   models.ReminderStatus
	}{
		{name: "retry budget left", retryCount: 0, wantEnqueued: true, wantStatus: models.ReminderStatusPending},
		{name: "last retry", retryCount: queue.DefaultMaxRetries - 1, wantEnqueued: true, wantStatus: models.ReminderStatusPending},
		{name: "retry budget exhausted", retryCount: queue.DefaultMaxRetries, wantEnqueued: false, wantStatus: models.ReminderStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rem := pendingReminder("write report by friday")
			repo := newMockReminderRepo(rem)
			jobQueue := &mockJobQueue{}
			planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
				return nil, errors.New("connection reset by peer")
			}}

			p := NewReminderPlanner(planner, repo, jobQueue, nil, nil)
			job := queue.NewJob(queue.JobTypePlanReminder, rem.ID)
			job.RetryCount = tt.retryCount
			msg := &mockMessage{job: job}

			before := time.Now()
			if err := p.ProcessJob(context.Background(), msg); err == nil {
				t.Fatal("Expected error")
			}

			if tt.wantEnqueued {
				if !msg.acked || msg.nacked {
					t.Errorf("Expected delivery acked, got acked=%v nacked=%v", msg.acked, msg.nacked)
				}
				if len(jobQueue.enqueued) != 1 {
					t.Fatalf("Expected one re-enqueued job, got %d", len(jobQueue.enqueued))
				}
				next := jobQueue.enqueued[0]
				if next.RetryCount != tt.retryCount+1 {
					t.Errorf("Expected retry count %d carried, got %d", tt.retryCount+1, next.RetryCount)
				}
				if next.NotBefore == nil || next.NotBefore.Before(before.Add(5*time.Second)) {
					t.Errorf("Expected backoff of at least 5s, got %v", next.NotBefore)
				}
			} else {
				if !msg.nacked || msg.requeue {
					t.Errorf("Expected dead-letter nack, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
				}
				if len(jobQueue.enqueued) != 0 {
					t.Errorf("Expected no re-enqueue, got %d", len(jobQueue.enqueued))
				}
			}
			if stored := repo.get(rem.ID); stored.Status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, stored.Status)
			}
		})
	}
}

func TestReminderPlanner_ProcessJob_RetriesStopAfterMax(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("write report by friday")
	repo := newMockReminderRepo(rem)
	jobQueue := &mockJobQueue{}
	calls := 0
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		calls++
		return nil, errors.New("connection reset by peer")
	}}
	p := NewReminderPlanner(planner, repo, jobQueue, nil, nil)

	// Feed every re-enqueued job back in, the way the broker would deliver it.
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, rem.ID)}
	for i := 0; i < 10; i++ {
		_ = p.ProcessJob(context.Background(), msg)
		if len(jobQueue.enqueued) <= i {
			break
		}
		msg = &mockMessage{job: jobQueue.enqueued[i]}
	}

	if calls != queue.DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", queue.DefaultMaxRetries+1, calls)
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("Expected final delivery dead-lettered, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
	}
	if stored := repo.get(rem.ID); stored.Status != models.ReminderStatusFailed {
		t.Errorf("Expected failed, got %s", stored.Status)
	}
}

func TestReminderPlanner_ProcessJob_QuotaRetriesAreCapped(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("plan offsite next month")
	repo := newMockReminderRepo(rem)
	jobQueue := &mockJobQueue{}
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		return nil, &estimator.APIError{StatusCode: 429, Code: "insufficient_quota", IsPermanent: true, Message: "quota exceeded"}
	}}

	p := NewReminderPlanner(planner, repo, jobQueue, nil, nil)
	job := queue.NewJob(queue.JobTypePlanReminder, rem.ID)
	job.RetryCount = queue.DefaultMaxRetries
	msg := &mockMessage{job: job}

	if err := p.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error once retries are exhausted")
	}
	if len(jobQueue.enqueued) != 0 {
		t.Errorf("Expected no re-enqueue, got %d", len(jobQueue.enqueued))
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("Expected dead-letter nack, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
	}
	if stored := repo.get(rem.ID); stored.Status != models.ReminderStatusFailed {
		t.Errorf("Expected failed, got %s", stored.Status)
	}
}

func TestReminderPlanner_ProcessJob_ReenqueueFailureMarksFailed(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("write report by friday")
	repo := newMockReminderRepo(rem)
	jobQueue := &mockJobQueue{enqueueFunc: func(ctx context.Context, job *queue.Job) error {
		return errors.New("channel closed")
	}}
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		return nil, errors.New("connection reset by peer")
	}}

	p := NewReminderPlanner(planner, repo, jobQueue, nil, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, rem.ID)}

	if err := p.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error")
	}
	if stored := repo.get(rem.ID); stored.Status != models.ReminderStatusFailed {
		t.Errorf("Expected failed so the reminder can be replanned, got %s", stored.Status)
	}
}

func TestReminderPlanner_ProcessJob_NoQueueDeadLetters(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("write report by friday")
	repo := newMockReminderRepo(rem)
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		return nil, errors.New("connection reset by peer")
	}}

	p := NewReminderPlanner(planner, repo, nil, nil, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, rem.ID)}

	if err := p.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error")
	}
	if !msg.nacked || msg.requeue {
		t.Errorf("Expected dead-letter nack, got nacked=%v requeue=%v", msg.nacked, msg.requeue)
	}
}

func TestReminderPlanner_ProcessJob_RateLimitedReenqueues(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("plan offsite next month")
	repo := newMockReminderRepo(rem)
	jobQueue := &mockJobQueue{}
	recorder := &mockJobRecorder{}
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		return nil, &estimator.APIError{StatusCode: 429, Type: "requests", Message: "slow down"}
	}}

	p := NewReminderPlanner(planner, repo, jobQueue, nil, recorder)
	job := queue.NewJob(queue.JobTypePlanReminder, rem.ID)
	msg := &mockMessage{job: job}

	before := time.Now()
	if err := p.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() unexpected error: %v", err)
	}
	if !msg.acked {
		t.Error("Expected original message acked")
	}
	if len(jobQueue.enqueued) != 1 {
		t.Fatalf("Expected one re-enqueued job, got %d", len(jobQueue.enqueued))
	}
	delayed := jobQueue.enqueued[0]
	if delayed.RetryCount != 1 || delayed.ReminderID != rem.ID {
		t.Errorf("Unexpected delayed job %+v", delayed)
	}
	if delayed.NotBefore == nil || delayed.NotBefore.Before(before.Add(time.Minute)) {
		t.Errorf("Expected NotBefore at least a minute out, got %v", delayed.NotBefore)
	}
	if stored := repo.get(rem.ID); stored.Status != models.ReminderStatusPending {
		t.Errorf("Expected reminder to stay pending, got %s", stored.Status)
	}
	if recorder.outcomes[OutcomeRetried] != 1 {
		t.Errorf("Expected one retried outcome, got %v", recorder.outcomes)
	}
}

func TestReminderPlanner_ProcessJob_AlreadyPlanned(t *testing.T) {
	t.Parallel()

	rem := pendingReminder("done already")
	rem.Status = models.ReminderStatusScheduled
	repo := newMockReminderRepo(rem)
	planner := &mockPlanner{planFunc: func(ctx context.Context, text string) (*reminder.Plan, error) {
		t.Error("Planner should not be called for a scheduled reminder")
		return nil, nil
	}}

	p := NewReminderPlanner(planner, repo, nil, nil, nil)
	msg := &mockMessage{job: queue.NewJob(queue.JobTypePlanReminder, rem.ID)}
	if err := p.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() unexpected error: %v", err)
	}
	if !msg.acked {
		t.Error("Expected message acked")
	}
	if len(repo.updates) != 0 {
		t.Errorf("Expected no updates, got %v", repo.updates)
	}
}

func TestReminderPlanner_ProcessJob_UnknownType(t *testing.T) {
	t.Parallel()

	p := NewReminderPlanner(&mockPlanner{}, newMockReminderRepo(), nil, nil, nil)
	msg := &mockMessage{job: &queue.Job{ID: uuid.New(), Type: "reprocess_user"}}

	if err := p.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for unknown job type")
	}
	if !msg.nacked || msg.requeue {
		t.Error("Expected unknown job to be dead-lettered")
	}
}
