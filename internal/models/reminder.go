package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderStatus represents the planning state of a reminder record
type ReminderStatus string

const (
	ReminderStatusPending            ReminderStatus = "pending"
	ReminderStatusProcessing         ReminderStatus = "processing"
	ReminderStatusScheduled          ReminderStatus = "scheduled"
	ReminderStatusNeedsClarification ReminderStatus = "needs_clarification"
	ReminderStatusFailed             ReminderStatus = "failed"
)

// DurationSource records where a reminder's preparation time came from
type DurationSource string

const (
	DurationSourceParsed    DurationSource = "parsed"
	DurationSourceEstimated DurationSource = "estimated"
	DurationSourceUser      DurationSource = "user"
)

// ParsedReminder is the structured result of parsing free-form reminder text
type ParsedReminder struct {
	Description string         `json:"description"`
	When        time.Time      `json:"when"`
	Duration    *time.Duration `json:"duration,omitempty"`
	Location    string         `json:"location,omitempty"`
}

// DurationMinutes returns the parsed duration in whole minutes, if one was found
func (p *ParsedReminder) DurationMinutes() (int, bool) {
	if p == nil || p.Duration == nil {
		return 0, false
	}
	return int(p.Duration.Minutes()), true
}

// Reminder is a persisted reminder request and its computed schedule
type Reminder struct {
	ID             uuid.UUID      `json:"id"`
	OriginalText   string         `json:"original_text"`
	Description    string         `json:"description,omitempty"`
	Location       string         `json:"location,omitempty"`
	DueAt          *time.Time     `json:"due_at,omitempty"`
	PrepMinutes    *int           `json:"prep_minutes,omitempty"`
	DurationSource DurationSource `json:"duration_source,omitempty"`
	Status         ReminderStatus `json:"status"`
	Schedule       []time.Time    `json:"schedule"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
