package database

import (
	"context"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

// ReminderRepositoryInterface defines the reminder operations used by handlers and workers.
// This interface enables mock implementations in tests.
type ReminderRepositoryInterface interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	List(ctx context.Context, status *models.ReminderStatus, page, pageSize int) ([]*models.Reminder, int, error)
	Update(ctx context.Context, reminder *models.Reminder) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ ReminderRepositoryInterface = (*ReminderRepository)(nil)
