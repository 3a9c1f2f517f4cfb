package scheduler

import "errors"

// ErrInvalidInput is returned for minute values outside the classifier domain (negative).
var ErrInvalidInput = errors.New("invalid input")
