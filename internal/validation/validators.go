package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("reminder_status", validateReminderStatus); err != nil {
		panic(fmt.Sprintf("failed to register reminder_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("timezone", validateTimezone); err != nil {
		panic(fmt.Sprintf("failed to register timezone validator: %v", err))
	}
}

func validateReminderStatus(fl validator.FieldLevel) bool {
	return ValidateReminderStatus(fl.Field().String()) == nil
}

// validateTimezone accepts empty values and any IANA zone name known to the runtime
func validateTimezone(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := time.LoadLocation(value)
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateReminderStatus validates a ReminderStatus string value
func ValidateReminderStatus(value string) error {
	switch models.ReminderStatus(value) {
	case models.ReminderStatusPending, models.ReminderStatusProcessing, models.ReminderStatusScheduled,
		models.ReminderStatusNeedsClarification, models.ReminderStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid status: %s (must be 'pending', 'processing', 'scheduled', 'needs_clarification', or 'failed')", value)
	}
}

// FormatErrors flattens validator errors into a single message naming each failing field
func FormatErrors(err error) string {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
