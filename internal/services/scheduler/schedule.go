package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	morningHour      = 7
	weekStartHour    = 8
	longTermLeadDays = 30
)

// Generate returns the ordered, deduplicated reminder times for a task due at dueAt
// that needs prepMinutes of preparation. All arithmetic is wall-clock in dueAt's location.
func Generate(dueAt time.Time, prepMinutes int) ([]time.Time, error) {
	category, err := ClassifyPrep(prepMinutes)
	if err != nil {
		return nil, err
	}

	var reminders []time.Time
	dueDate := dateOf(dueAt)

	switch category {
	case PrepUnderFourHours:
		reminders = append(reminders,
			dueAt.Add(-4*time.Hour),
			atHour(dueDate.AddDate(0, 0, -1), weekStartHour),
			atHour(dueDate, weekStartHour),
		)

	case PrepOneDay:
		reminders = append(reminders, dueAt.Add(-24*time.Hour))
		reminders = appendDaily(reminders, startOfWeek(dueDate), dueDate)

	case PrepFewDays:
		monday := startOfWeek(dueDate)
		reminders = append(reminders, atHour(monday, weekStartHour))
		reminders = appendDaily(reminders, monday.AddDate(0, 0, 1), dueDate)

	case PrepLongTerm:
		monthBefore := dueDate.AddDate(0, 0, -longTermLeadDays)
		reminders = append(reminders, atHour(monthBefore, morningHour))

		dueWeek := startOfWeek(dueDate)
		for day := nextMonday(monthBefore); day.Before(dueWeek); day = day.AddDate(0, 0, 7) {
			reminders = append(reminders, atHour(day, morningHour))
		}
		reminders = appendDaily(reminders, dueWeek, dueDate)
	}

	return sortUnique(reminders), nil
}

// ScheduleRequest is one item of a batch generation call
type ScheduleRequest struct {
	DueAt       time.Time
	PrepMinutes int
}

// GenerateBatch runs Generate for every request with at most concurrency workers.
// Results are index-aligned with requests; the first error aborts the batch.
func GenerateBatch(ctx context.Context, requests []ScheduleRequest, concurrency int) ([][]time.Time, error) {
	results := make([][]time.Time, len(requests))
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, req := range requests {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			schedule, err := Generate(req.DueAt, req.PrepMinutes)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			results[i] = schedule
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// dateOf truncates t to midnight, keeping its location
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func atHour(day time.Time, hour int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, day.Location())
}

// mondayOffset counts days since Monday (Monday=0 ... Sunday=6)
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// startOfWeek returns the most recent Monday on or before day
func startOfWeek(day time.Time) time.Time {
	return dateOf(day).AddDate(0, 0, -mondayOffset(day))
}

// nextMonday returns the first Monday on or after day
func nextMonday(day time.Time) time.Time {
	return dateOf(day).AddDate(0, 0, (7-mondayOffset(day))%7)
}

// appendDaily adds a 07:00 reminder for every date in [from, through]
func appendDaily(reminders []time.Time, from, through time.Time) []time.Time {
	last := dateOf(through)
	for day := dateOf(from); !day.After(last); day = day.AddDate(0, 0, 1) {
		reminders = append(reminders, atHour(day, morningHour))
	}
	return reminders
}

func sortUnique(times []time.Time) []time.Time {
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		if len(out) > 0 && out[len(out)-1].Equal(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
