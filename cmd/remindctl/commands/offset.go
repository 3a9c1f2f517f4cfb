package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"github.com/spf13/cobra"
)

type offsetResult struct {
	DueAt            time.Time                  `json:"due_at" yaml:"due_at"`
	ExpectedMinutes  int                        `json:"expected_minutes" yaml:"expected_minutes"`
	DurationCategory scheduler.DurationCategory `json:"duration_category" yaml:"duration_category"`
	OffsetMinutes    int                        `json:"offset_minutes" yaml:"offset_minutes"`
	ReminderAt       time.Time                  `json:"reminder_at" yaml:"reminder_at"`
}

func newOffsetCmd(root *rootOptions) *cobra.Command {
	var due string
	var expected int

	cmd := &cobra.Command{
		Use:     "offset",
		Short:   "Compute the single lead reminder for a task of the given length",
		Example: "  remindctl offset --due \"2024-01-05 17:00\" --expected 30",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, loc, err := loadLocation()
			if err != nil {
				return err
			}
			dueAt, err := parseTime(due, loc)
			if err != nil {
				return fmt.Errorf("--due: %w", err)
			}

			category, err := scheduler.ClassifyDuration(expected)
			if err != nil {
				return fmt.Errorf("--expected: %w", err)
			}
			reminderAt, err := scheduler.OffsetFor(dueAt, expected)
			if err != nil {
				return err
			}

			result := offsetResult{
				DueAt:            dueAt,
				ExpectedMinutes:  expected,
				DurationCategory: category,
				OffsetMinutes:    int(dueAt.Sub(reminderAt).Minutes()),
				ReminderAt:       reminderAt,
			}
			return render(cmd.OutOrStdout(), root.output, result, func(w io.Writer) {
				fmt.Fprintf(w, "Due:      %s\n", formatInstant(dueAt))
				fmt.Fprintf(w, "Task:     %d minutes (%s)\n", expected, category)
				fmt.Fprintf(w, "Remind:   %s (%d minutes before)\n", formatInstant(reminderAt), result.OffsetMinutes)
			})
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "Due time (RFC 3339 or YYYY-MM-DD HH:MM in REMINDER_TIMEZONE)")
	cmd.Flags().IntVar(&expected, "expected", 0, "Expected task length in minutes")
	_ = cmd.MarkFlagRequired("due")
	_ = cmd.MarkFlagRequired("expected")

	return cmd
}
