package scheduler

import (
	"fmt"
	"time"
)

// DurationCategory buckets the expected length of a task
type DurationCategory string

const (
	DurationShort  DurationCategory = "short"
	DurationMedium DurationCategory = "medium"
	DurationLong   DurationCategory = "long"
)

// PrepCategory buckets how much preparation a task needs before it is due
type PrepCategory string

const (
	PrepUnderFourHours PrepCategory = "under_four_hours"
	PrepOneDay         PrepCategory = "one_day"
	PrepFewDays        PrepCategory = "few_days"
	PrepLongTerm       PrepCategory = "long_term"
)

const (
	shortDurationLimit  = 60     // minutes, exclusive
	mediumDurationLimit = 8 * 60 // minutes, inclusive

	underFourHoursLimit = 4 * 60
	oneDayLimit         = 24 * 60
	fewDaysLimit        = 7 * 24 * 60
)

var categoryOffsets = map[DurationCategory]time.Duration{
	DurationShort:  10 * time.Minute,
	DurationMedium: time.Hour,
	DurationLong:   24 * time.Hour,
}

// ClassifyDuration maps an expected duration in minutes to its lead-time category.
// Exactly 8 hours is still medium.
func ClassifyDuration(expectedMinutes int) (DurationCategory, error) {
	if expectedMinutes < 0 {
		return "", fmt.Errorf("%w: expected minutes must be non-negative, got %d", ErrInvalidInput, expectedMinutes)
	}
	switch {
	case expectedMinutes < shortDurationLimit:
		return DurationShort, nil
	case expectedMinutes <= mediumDurationLimit:
		return DurationMedium, nil
	default:
		return DurationLong, nil
	}
}

// LookupOffset returns the lead time for a duration category and whether the
// category is known.
func LookupOffset(category DurationCategory) (time.Duration, bool) {
	offset, ok := categoryOffsets[category]
	return offset, ok
}

// DetermineOffset classifies expectedMinutes and returns the matching lead time
func DetermineOffset(expectedMinutes int) (time.Duration, error) {
	category, err := ClassifyDuration(expectedMinutes)
	if err != nil {
		return 0, err
	}
	offset, ok := LookupOffset(category)
	if !ok {
		return 0, fmt.Errorf("%w: no lead time for duration category %q", ErrInvalidInput, category)
	}
	return offset, nil
}

// ClassifyPrep maps preparation minutes to the effort bucket that selects a cadence
func ClassifyPrep(prepMinutes int) (PrepCategory, error) {
	if prepMinutes < 0 {
		return "", fmt.Errorf("%w: prep minutes must be non-negative, got %d", ErrInvalidInput, prepMinutes)
	}
	switch {
	case prepMinutes < underFourHoursLimit:
		return PrepUnderFourHours, nil
	case prepMinutes < oneDayLimit:
		return PrepOneDay, nil
	case prepMinutes < fewDaysLimit:
		return PrepFewDays, nil
	default:
		return PrepLongTerm, nil
	}
}
