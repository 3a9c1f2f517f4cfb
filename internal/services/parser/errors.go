package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyText is returned when no reminder text was supplied
	ErrEmptyText = errors.New("no reminder text provided")
	// ErrNoDateTime is returned when no date or time expression was found
	ErrNoDateTime = errors.New("could not parse a date or time from the reminder")
	// ErrNoDescription is returned when nothing is left after removing date and duration phrases
	ErrNoDescription = errors.New("could not determine the task description")
	// ErrDurationTooLarge is returned when a "for N units" phrase exceeds the representable duration
	ErrDurationTooLarge = errors.New("duration is too large")
)

// ParseError reports that required fields could not be extracted from reminder text
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
