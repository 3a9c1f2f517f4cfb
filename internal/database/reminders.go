package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

const reminderColumns = `id, original_text, description, location, due_at, prep_minutes,
		duration_source, status, schedule, last_error, created_at, updated_at`

// ReminderRepository handles reminder database operations
type ReminderRepository struct {
	db *DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Create inserts a new reminder. A zero ID is replaced with a fresh UUID.
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == uuid.Nil {
		reminder.ID = uuid.New()
	}
	if reminder.Status == "" {
		reminder.Status = models.ReminderStatusPending
	}

	scheduleJSON, err := encodeSchedule(reminder.Schedule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reminders (id, original_text, description, location, due_at, prep_minutes,
			duration_source, status, schedule, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		reminder.ID,
		reminder.OriginalText,
		reminder.Description,
		reminder.Location,
		nullTime(reminder.DueAt),
		nullInt(reminder.PrepMinutes),
		string(reminder.DurationSource),
		string(reminder.Status),
		string(scheduleJSON),
		reminder.LastError,
		time.Now(),
	).Scan(&reminder.CreatedAt, &reminder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// GetByID retrieves a reminder by ID
func (r *ReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return reminder, nil
}

// List returns one page of reminders, newest first, optionally filtered by status,
// together with the total number of matching rows.
func (r *ReminderRepository) List(ctx context.Context, status *models.ReminderStatus, page, pageSize int) ([]*models.Reminder, int, error) {
	where, args := buildListFilter(status)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reminders: %w", err)
	}

	limit, offset := pageBounds(page, pageSize)
	query := fmt.Sprintf(`SELECT %s FROM reminders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reminderColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating reminders: %w", err)
	}
	return reminders, total, nil
}

// Update stores the mutable fields of a reminder
func (r *ReminderRepository) Update(ctx context.Context, reminder *models.Reminder) error {
	scheduleJSON, err := encodeSchedule(reminder.Schedule)
	if err != nil {
		return err
	}

	query := `
		UPDATE reminders
		SET description = $2, location = $3, due_at = $4, prep_minutes = $5,
			duration_source = $6, status = $7, schedule = $8, last_error = $9, updated_at = $10
		WHERE id = $1
		RETURNING updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		reminder.ID,
		reminder.Description,
		reminder.Location,
		nullTime(reminder.DueAt),
		nullInt(reminder.PrepMinutes),
		string(reminder.DurationSource),
		string(reminder.Status),
		string(scheduleJSON),
		reminder.LastError,
		time.Now(),
	).Scan(&reminder.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reminder %s: %w", reminder.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return nil
}

// Delete deletes a reminder by ID
func (r *ReminderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	var (
		dueAt          sql.NullTime
		prepMinutes    sql.NullInt64
		durationSource string
		status         string
		scheduleJSON   []byte
	)

	err := row.Scan(
		&reminder.ID,
		&reminder.OriginalText,
		&reminder.Description,
		&reminder.Location,
		&dueAt,
		&prepMinutes,
		&durationSource,
		&status,
		&scheduleJSON,
		&reminder.LastError,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueAt.Valid {
		reminder.DueAt = &dueAt.Time
	}
	if prepMinutes.Valid {
		minutes := int(prepMinutes.Int64)
		reminder.PrepMinutes = &minutes
	}
	reminder.DurationSource = models.DurationSource(durationSource)
	reminder.Status = models.ReminderStatus(status)

	reminder.Schedule, err = decodeSchedule(scheduleJSON)
	if err != nil {
		return nil, err
	}
	return reminder, nil
}

func encodeSchedule(schedule []time.Time) ([]byte, error) {
	if schedule == nil {
		schedule = []time.Time{}
	}
	data, err := json.Marshal(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schedule: %w", err)
	}
	return data, nil
}

func decodeSchedule(data []byte) ([]time.Time, error) {
	schedule := []time.Time{}
	if len(data) == 0 {
		return schedule, nil
	}
	if err := json.Unmarshal(data, &schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return schedule, nil
}

func buildListFilter(status *models.ReminderStatus) (string, []any) {
	if status == nil {
		return "", nil
	}
	return " WHERE status = $1", []any{string(*status)}
}

func pageBounds(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
