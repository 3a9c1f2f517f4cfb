package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/google/uuid"
)

// mockPlanner is a mock implementation of Planner
type mockPlanner struct {
	planFunc func(ctx context.Context, text string) (*reminder.Plan, error)
}

func (m *mockPlanner) Plan(ctx context.Context, text string) (*reminder.Plan, error) {
	return m.planFunc(ctx, text)
}

var _ Planner = (*mockPlanner)(nil)

// mockReminderRepo is an in-memory ReminderRepositoryInterface
type mockReminderRepo struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*models.Reminder
	updates   []models.ReminderStatus
	listFunc  func(ctx context.Context, status *models.ReminderStatus, page, pageSize int) ([]*models.Reminder, int, error)
	updateErr error
}

func newMockReminderRepo(reminders ...*models.Reminder) *mockReminderRepo {
	m := &mockReminderRepo{reminders: make(map[uuid.UUID]*models.Reminder)}
	for _, r := range reminders {
		m.reminders[r.ID] = r
	}
	return m
}

func (m *mockReminderRepo) Create(ctx context.Context, r *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	copied := *r
	m.reminders[r.ID] = &copied
	return nil
}

func (m *mockReminderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *mockReminderRepo) List(ctx context.Context, status *models.ReminderStatus, page, pageSize int) ([]*models.Reminder, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, status, page, pageSize)
	}
	return nil, 0, errors.New("not implemented")
}

func (m *mockReminderRepo) Update(ctx context.Context, r *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.reminders[r.ID]; !ok {
		return database.ErrNotFound
	}
	copied := *r
	m.reminders[r.ID] = &copied
	m.updates = append(m.updates, r.Status)
	return nil
}

func (m *mockReminderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reminders, id)
	return nil
}

func (m *mockReminderRepo) get(id uuid.UUID) *models.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reminders[id]
}

var _ database.ReminderRepositoryInterface = (*mockReminderRepo)(nil)

// mockJobQueue is a mock implementation of JobQueue that records enqueued jobs
type mockJobQueue struct {
	mu          sync.Mutex
	enqueued    []*queue.Job
	enqueueFunc func(ctx context.Context, job *queue.Job) error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)

// mockMessage is a mock implementation of MessageInterface
type mockMessage struct {
	job     *queue.Job
	acked   bool
	nacked  bool
	requeue bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeue = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job { return m.job }

var _ queue.MessageInterface = (*mockMessage)(nil)

// mockJobRecorder counts outcomes
type mockJobRecorder struct {
	outcomes map[string]int
}

func (m *mockJobRecorder) IncJob(outcome string) {
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[outcome]++
}

var _ JobRecorder = (*mockJobRecorder)(nil)
