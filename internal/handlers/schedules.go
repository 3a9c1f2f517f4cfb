package handlers

import (
	"net/http"
	"time"

	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxBatchItems bounds a single batch schedule request
const MaxBatchItems = 100

// ScheduleHandler exposes the pure scheduling functions
type ScheduleHandler struct {
	concurrency int
	logger      *zap.Logger
}

// NewScheduleHandler creates a schedule handler. concurrency bounds batch workers.
func NewScheduleHandler(concurrency int, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{concurrency: concurrency, logger: logger}
}

// RegisterRoutes registers schedule routes on a router with the /schedules prefix
func (h *ScheduleHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Generate).Methods("POST")
	r.HandleFunc("/batch", h.GenerateBatch).Methods("POST")
	r.HandleFunc("/offset", h.Offset).Methods("POST")
}

// ScheduleRequest asks for the reminder cadence of one task
type ScheduleRequest struct {
	DueAt       time.Time `json:"due_at" validate:"required"`
	PrepMinutes *int      `json:"prep_minutes" validate:"required"`
}

// ScheduleResponse is the generated cadence of one task
type ScheduleResponse struct {
	DueAt        time.Time              `json:"due_at"`
	PrepMinutes  int                    `json:"prep_minutes"`
	PrepCategory scheduler.PrepCategory `json:"prep_category"`
	Reminders    []time.Time            `json:"reminders"`
}

// BatchScheduleRequest asks for several cadences at once
type BatchScheduleRequest struct {
	Items []ScheduleRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// BatchScheduleResponse holds results index-aligned with the request items
type BatchScheduleResponse struct {
	Results []ScheduleResponse `json:"results"`
}

// OffsetRequest asks for the single lead reminder of a task
type OffsetRequest struct {
	DueAt           time.Time `json:"due_at" validate:"required"`
	ExpectedMinutes *int      `json:"expected_minutes" validate:"required"`
}

// OffsetResponse is the single lead reminder of a task
type OffsetResponse struct {
	DueAt            time.Time                  `json:"due_at"`
	ExpectedMinutes  int                        `json:"expected_minutes"`
	DurationCategory scheduler.DurationCategory `json:"duration_category"`
	OffsetMinutes    int                        `json:"offset_minutes"`
	ReminderAt       time.Time                  `json:"reminder_at"`
}

func buildSchedule(dueAt time.Time, prepMinutes int, reminders []time.Time) (ScheduleResponse, error) {
	category, err := scheduler.ClassifyPrep(prepMinutes)
	if err != nil {
		return ScheduleResponse{}, err
	}
	return ScheduleResponse{
		DueAt:        dueAt,
		PrepMinutes:  prepMinutes,
		PrepCategory: category,
		Reminders:    reminders,
	}, nil
}

// Generate handles POST /schedules
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	reminders, err := scheduler.Generate(req.DueAt, *req.PrepMinutes)
	if err != nil {
		respondPlanError(w, err, h.logger)
		return
	}
	resp, err := buildSchedule(req.DueAt, *req.PrepMinutes, reminders)
	if err != nil {
		respondPlanError(w, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GenerateBatch handles POST /schedules/batch
func (h *ScheduleHandler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchScheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	requests := make([]scheduler.ScheduleRequest, len(req.Items))
	for i, item := range req.Items {
		requests[i] = scheduler.ScheduleRequest{DueAt: item.DueAt, PrepMinutes: *item.PrepMinutes}
	}

	schedules, err := scheduler.GenerateBatch(r.Context(), requests, h.concurrency)
	if err != nil {
		respondPlanError(w, err, h.logger)
		return
	}

	results := make([]ScheduleResponse, len(schedules))
	for i, reminders := range schedules {
		resp, err := buildSchedule(requests[i].DueAt, requests[i].PrepMinutes, reminders)
		if err != nil {
			respondPlanError(w, err, h.logger)
			return
		}
		results[i] = resp
	}
	respondJSON(w, http.StatusOK, BatchScheduleResponse{Results: results})
}

// Offset handles POST /schedules/offset
func (h *ScheduleHandler) Offset(w http.ResponseWriter, r *http.Request) {
	var req OffsetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	category, err := scheduler.ClassifyDuration(*req.ExpectedMinutes)
	if err != nil {
		respondPlanError(w, err, h.logger)
		return
	}
	reminderAt, err := scheduler.OffsetFor(req.DueAt, *req.ExpectedMinutes)
	if err != nil {
		respondPlanError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusOK, OffsetResponse{
		DueAt:            req.DueAt,
		ExpectedMinutes:  *req.ExpectedMinutes,
		DurationCategory: category,
		OffsetMinutes:    int(req.DueAt.Sub(reminderAt).Minutes()),
		ReminderAt:       reminderAt,
	})
}
