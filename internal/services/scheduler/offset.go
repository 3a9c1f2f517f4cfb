package scheduler

import "time"

// OffsetFor returns the single lead reminder for a task: dueAt minus the
// offset of the task's duration category.
func OffsetFor(dueAt time.Time, expectedMinutes int) (time.Time, error) {
	offset, err := DetermineOffset(expectedMinutes)
	if err != nil {
		return time.Time{}, err
	}
	return dueAt.Add(-offset), nil
}
