package handlers

import (
	"context"
	"net/http"

	logpkg "github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/request"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxReminderTextLength is the maximum length of reminder text
const MaxReminderTextLength = 2000

// Planner turns reminder text into a plan (implemented by *reminder.Orchestrator)
type Planner interface {
	Plan(ctx context.Context, text string) (*reminder.Plan, error)
}

// PlanHandler plans reminder text synchronously without storing it
type PlanHandler struct {
	planner Planner
	logger  *zap.Logger
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(planner Planner, logger *zap.Logger) *PlanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanHandler{planner: planner, logger: logger}
}

// RegisterRoutes registers the plan route on the API router
func (h *PlanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/plan", h.Plan).Methods("POST")
}

// TextRequest carries free-form reminder text
type TextRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// Plan handles POST /plan
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	text := validation.SanitizeText(req.Text)
	plan, err := h.planner.Plan(r.Context(), text)
	if err != nil {
		h.logger.Debug("plan_request_rejected",
			zap.String("request_id", request.RequestIDFromContext(r.Context())),
			zap.String("text", logpkg.SanitizeText(text)),
			zap.Error(err),
		)
		respondPlanError(w, err, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}
