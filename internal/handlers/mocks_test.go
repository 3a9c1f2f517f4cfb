package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

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
	createErr error
	listErr   error
}

func newMockReminderRepo(reminders ...*models.Reminder) *mockReminderRepo {
	m := &mockReminderRepo{reminders: make(map[uuid.UUID]*models.Reminder)}
	for _, r := range reminders {
		m.reminders[r.ID] = r
	}
	return m
}

func (m *mockReminderRepo) Create(ctx context.Context, r *models.Reminder) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
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
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.Reminder
	for _, r := range m.reminders {
		if status == nil || r.Status == *status {
			copied := *r
			all = append(all, &copied)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], len(all), nil
}

func (m *mockReminderRepo) Update(ctx context.Context, r *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[r.ID]; !ok {
		return database.ErrNotFound
	}
	copied := *r
	m.reminders[r.ID] = &copied
	return nil
}

func (m *mockReminderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reminders[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.reminders, id)
	return nil
}

func (m *mockReminderRepo) get(id uuid.UUID) *models.Reminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reminders[id]
}

var _ database.ReminderRepositoryInterface = (*mockReminderRepo)(nil)

// mockJobQueue records enqueued jobs
type mockJobQueue struct {
	mu         sync.Mutex
	enqueued   []*queue.Job
	enqueueErr error
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
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

// envelope mirrors the JSON envelope written by respondJSON and respondJSONError
type envelope struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	Message     string          `json:"message"`
	Question    string          `json:"question"`
	Description string          `json:"description"`
	DueAt       *time.Time      `json:"due_at"`
	Timestamp   string          `json:"timestamp"`
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("Failed to encode request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("Failed to decode data %s: %v", env.Data, err)
	}
}
