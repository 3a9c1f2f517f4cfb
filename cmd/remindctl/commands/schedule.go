package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"github.com/spf13/cobra"
)

type scheduleResult struct {
	DueAt        time.Time              `json:"due_at" yaml:"due_at"`
	PrepMinutes  int                    `json:"prep_minutes" yaml:"prep_minutes"`
	PrepCategory scheduler.PrepCategory `json:"prep_category" yaml:"prep_category"`
	Reminders    []time.Time            `json:"reminders" yaml:"reminders"`
}

func newScheduleCmd(root *rootOptions) *cobra.Command {
	var due string
	var prep int

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate the reminder schedule for a due time and preparation estimate",
		Example: "  remindctl schedule --due \"2024-01-05 17:00\" --prep 180\n" +
			"  remindctl schedule --due 2024-02-14T10:00:00Z --prep 11520 -o json",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, loc, err := loadLocation()
			if err != nil {
				return err
			}
			dueAt, err := parseTime(due, loc)
			if err != nil {
				return fmt.Errorf("--due: %w", err)
			}

			category, err := scheduler.ClassifyPrep(prep)
			if err != nil {
				return fmt.Errorf("--prep: %w", err)
			}
			reminders, err := scheduler.Generate(dueAt, prep)
			if err != nil {
				return err
			}

			result := scheduleResult{DueAt: dueAt, PrepMinutes: prep, PrepCategory: category, Reminders: reminders}
			return render(cmd.OutOrStdout(), root.output, result, func(w io.Writer) {
				fmt.Fprintf(w, "Due:       %s\n", formatInstant(dueAt))
				fmt.Fprintf(w, "Prep:      %d minutes (%s)\n", prep, category)
				fmt.Fprintln(w, "Reminders:")
				for _, r := range reminders {
					fmt.Fprintf(w, "  - %s\n", formatInstant(r))
				}
			})
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "Due time (RFC 3339 or YYYY-MM-DD HH:MM in REMINDER_TIMEZONE)")
	cmd.Flags().IntVar(&prep, "prep", 0, "Preparation time in minutes")
	_ = cmd.MarkFlagRequired("due")
	_ = cmd.MarkFlagRequired("prep")

	return cmd
}
