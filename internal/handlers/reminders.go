package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/request"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 20
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 100
)

// Rescheduler rebuilds a plan from a known due time and preparation minutes
// (implemented by *reminder.Orchestrator)
type Rescheduler interface {
	Reschedule(dueAt time.Time, prepMinutes int) (*reminder.Plan, error)
}

// ReminderHandler handles stored reminders. Planning happens in the worker.
type ReminderHandler struct {
	repo        database.ReminderRepositoryInterface
	jobQueue    queue.JobQueue
	rescheduler Rescheduler
	logger      *zap.Logger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(repo database.ReminderRepositoryInterface, jobQueue queue.JobQueue, rescheduler Rescheduler, logger *zap.Logger) *ReminderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderHandler{
		repo:        repo,
		jobQueue:    jobQueue,
		rescheduler: rescheduler,
		logger:      logger,
	}
}

// RegisterRoutes registers reminder routes on a router with the /reminders prefix
func (h *ReminderHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListReminders).Methods("GET")
	r.HandleFunc("", h.CreateReminder).Methods("POST")
	r.HandleFunc("/{id}", h.GetReminder).Methods("GET")
	r.HandleFunc("/{id}", h.DeleteReminder).Methods("DELETE")
	r.HandleFunc("/{id}/duration", h.SetDuration).Methods("PUT")
	r.HandleFunc("/{id}/replan", h.Replan).Methods("POST")
}

// DurationRequest answers a clarification with the preparation time in minutes
type DurationRequest struct {
	PrepMinutes *int `json:"prep_minutes" validate:"required"`
}

// ListRemindersResponse represents the paginated response for listing reminders
type ListRemindersResponse struct {
	Reminders  []*models.Reminder `json:"reminders"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// CreateReminder stores the text as a pending reminder and enqueues planning.
// If the enqueue fails the record stays pending and is picked up by the reprocessor.
func (h *ReminderHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	text := validation.SanitizeText(req.Text)
	if text == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Reminder text is required")
		return
	}

	ctx := r.Context()
	rem := &models.Reminder{
		ID:           uuid.New(),
		OriginalText: text,
		Status:       models.ReminderStatusPending,
		Schedule:     []time.Time{},
	}
	if err := h.repo.Create(ctx, rem); err != nil {
		h.logger.Error("failed_to_create_reminder", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create reminder")
		return
	}

	h.enqueue(r, rem.ID)
	respondJSON(w, http.StatusAccepted, rem)
}

func (h *ReminderHandler) enqueue(r *http.Request, id uuid.UUID) {
	if h.jobQueue == nil {
		h.logger.Warn("job_queue_not_available", zap.String("reminder_id", id.String()))
		return
	}
	job := queue.NewJob(queue.JobTypePlanReminder, id)
	if requestID := request.RequestIDFromContext(r.Context()); requestID != "" {
		job.Metadata["request_id"] = requestID
	}
	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed_to_enqueue_job",
			zap.String("reminder_id", id.String()),
			zap.Error(err),
		)
		return
	}
	h.logger.Debug("enqueued_plan_reminder_job",
		zap.String("reminder_id", id.String()),
		zap.String("job_id", job.ID.String()),
	)
}

// ListReminders lists reminders with optional status filter and pagination
func (h *ReminderHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize := DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			pageSize = min(parsed, MaxPageSize)
		}
	}

	var status *models.ReminderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateReminderStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		st := models.ReminderStatus(s)
		status = &st
	}

	reminders, total, err := h.repo.List(r.Context(), status, page, pageSize)
	if err != nil {
		h.logger.Error("failed_to_list_reminders", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve reminders")
		return
	}
	if reminders == nil {
		reminders = []*models.Reminder{}
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	respondJSON(w, http.StatusOK, ListRemindersResponse{
		Reminders:  reminders,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// loadReminder parses the {id} route variable and fetches the record, writing
// the error response when that fails.
func (h *ReminderHandler) loadReminder(w http.ResponseWriter, r *http.Request) (*models.Reminder, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid reminder ID")
		return nil, false
	}

	rem, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Reminder not found")
			return nil, false
		}
		h.logger.Error("failed_to_get_reminder", zap.String("reminder_id", id.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve reminder")
		return nil, false
	}
	return rem, true
}

// GetReminder returns one reminder
func (h *ReminderHandler) GetReminder(w http.ResponseWriter, r *http.Request) {
	rem, ok := h.loadReminder(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

// DeleteReminder deletes a reminder
func (h *ReminderHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid reminder ID")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Reminder not found")
			return
		}
		h.logger.Error("failed_to_delete_reminder", zap.String("reminder_id", id.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete reminder")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetDuration answers a clarification: the user supplies the preparation time
// and the schedule is rebuilt from the stored due time.
func (h *ReminderHandler) SetDuration(w http.ResponseWriter, r *http.Request) {
	rem, ok := h.loadReminder(w, r)
	if !ok {
		return
	}

	var req DurationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if rem.DueAt == nil {
		respondJSONError(w, http.StatusConflict, "Conflict", "Reminder has no due time yet; wait for planning to finish")
		return
	}

	plan, err := h.rescheduler.Reschedule(*rem.DueAt, *req.PrepMinutes)
	if err != nil {
		respondPlanError(w, err, h.logger)
		return
	}

	minutes := plan.PrepMinutes
	rem.PrepMinutes = &minutes
	rem.DurationSource = models.DurationSourceUser
	rem.Schedule = plan.Reminders
	rem.Status = models.ReminderStatusScheduled
	rem.LastError = ""

	if err := h.repo.Update(r.Context(), rem); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Reminder not found")
			return
		}
		h.logger.Error("failed_to_update_reminder", zap.String("reminder_id", rem.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update reminder")
		return
	}

	h.logger.Info("reminder_rescheduled",
		zap.String("reminder_id", rem.ID.String()),
		zap.Int("prep_minutes", minutes),
		zap.Int("reminder_count", len(rem.Schedule)),
	)
	respondJSON(w, http.StatusOK, rem)
}

// Replan resets a failed reminder to pending and enqueues planning again
func (h *ReminderHandler) Replan(w http.ResponseWriter, r *http.Request) {
	rem, ok := h.loadReminder(w, r)
	if !ok {
		return
	}

	switch rem.Status {
	case models.ReminderStatusFailed, models.ReminderStatusPending:
	default:
		respondJSONError(w, http.StatusConflict, "Conflict", "Only failed or pending reminders can be replanned")
		return
	}

	rem.Status = models.ReminderStatusPending
	rem.LastError = ""
	if err := h.repo.Update(r.Context(), rem); err != nil {
		h.logger.Error("failed_to_update_reminder", zap.String("reminder_id", rem.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update reminder")
		return
	}

	h.enqueue(r, rem.ID)
	respondJSON(w, http.StatusAccepted, rem)
}
