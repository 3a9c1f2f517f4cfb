package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/services/parser"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"github.com/benvon/smart-reminders/internal/validation"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage caps client-facing error messages
func sanitizeErrorMessage(message string) string {
	if len(message) > maxErrorMessageLength {
		return message[:maxErrorMessageLength] + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	respondJSONErrorWith(w, status, errorType, message, nil)
}

// respondJSONErrorWith adds extra top-level fields to the error envelope
func respondJSONErrorWith(w http.ResponseWriter, status int, errorType, message string, extra map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		response[k] = v
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// errBodyTooLarge is returned by decodeAndValidate when MaxRequestSize cut the body
var errBodyTooLarge = errors.New("request body too large")

// decodeAndValidate decodes a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether the caller may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", err.Error())
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	if err := validation.Validate.Struct(dst); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			respondJSONError(w, http.StatusBadRequest, "Validation Error", validation.FormatErrors(validationErrs))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return errBodyTooLarge
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		default:
			return fmt.Errorf("invalid request body: %w", err)
		}
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// respondPlanError maps planning failures onto HTTP statuses:
// parse and input errors are 400, a missing duration is 422 with the question to ask.
func respondPlanError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var parseErr *parser.ParseError
	var clarification *reminder.ClarificationRequiredError
	switch {
	case errors.As(err, &clarification):
		details := map[string]any{
			"question":    clarification.Question,
			"description": clarification.Description,
		}
		if !clarification.DueAt.IsZero() {
			details["due_at"] = clarification.DueAt
		}
		respondJSONErrorWith(w, http.StatusUnprocessableEntity, "Clarification Required", clarification.Question, details)
	case errors.As(err, &parseErr):
		respondJSONError(w, http.StatusBadRequest, "Parse Error", parseErr.Err.Error())
	case errors.Is(err, scheduler.ErrInvalidInput):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, database.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Reminder not found")
	default:
		logger.Error("plan_request_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to plan reminder")
	}
}
