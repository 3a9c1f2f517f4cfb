package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benvon/smart-reminders/internal/config"
	"github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/services/estimator"
	"github.com/benvon/smart-reminders/internal/services/parser"
	"github.com/benvon/smart-reminders/internal/services/reminder"
	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"github.com/spf13/cobra"
)

type planResult struct {
	Description    string                 `json:"description" yaml:"description"`
	Location       string                 `json:"location,omitempty" yaml:"location,omitempty"`
	DueAt          time.Time              `json:"due_at" yaml:"due_at"`
	PrepMinutes    int                    `json:"prep_minutes" yaml:"prep_minutes"`
	DurationSource models.DurationSource  `json:"duration_source" yaml:"duration_source"`
	PrepCategory   scheduler.PrepCategory `json:"prep_category" yaml:"prep_category"`
	Reminders      []time.Time            `json:"reminders" yaml:"reminders"`
}

type clarificationResult struct {
	Description string `json:"description" yaml:"description"`
	Question    string `json:"question" yaml:"question"`
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	var useOpenAI bool
	var now string

	cmd := &cobra.Command{
		Use:   "plan <text>",
		Short: "Parse reminder text and print its schedule",
		Long: "plan parses free text locally. The preparation time comes from a \"for N hours\" " +
			"phrase, or else from the keyword estimator (and OpenAI with --openai). " +
			"When neither knows, the clarification question is printed and the command fails.",
		Example: "  remindctl plan \"Pay rent tomorrow at 3pm for an hour\"\n" +
			"  remindctl plan --openai \"write the quarterly report by friday 5pm\"",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loc, err := loadLocation()
			if err != nil {
				return err
			}

			zapLogger, err := logger.NewDevelopmentLogger(root.debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync(zapLogger) }()

			parserOpts := []parser.Option{parser.WithLocation(loc)}
			if now != "" {
				base, err := parseTime(now, loc)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				parserOpts = append(parserOpts, parser.WithClock(func() time.Time { return base }))
			}

			name := config.EstimatorKeyword
			if useOpenAI {
				if cfg.OpenAIKey == "" {
					return fmt.Errorf("--openai requires OPENAI_API_KEY")
				}
				name = config.EstimatorChain
			}
			settings := cfg.EstimatorConfig()
			if root.debug {
				settings["debug"] = "true"
			}
			est, err := estimator.Build(name, settings, nil, zapLogger)
			if err != nil {
				return err
			}

			orchestrator := reminder.NewOrchestrator(parser.New(parserOpts...), est, reminder.WithLogger(zapLogger))
			plan, err := orchestrator.Plan(cmd.Context(), strings.Join(args, " "))

			var clarification *reminder.ClarificationRequiredError
			if errors.As(err, &clarification) {
				result := clarificationResult{Description: clarification.Description, Question: clarification.Question}
				if renderErr := render(cmd.OutOrStdout(), root.output, result, func(w io.Writer) {
					fmt.Fprintf(w, "Task:     %s\n", clarification.Description)
					fmt.Fprintf(w, "Question: %s\n", clarification.Question)
				}); renderErr != nil {
					return renderErr
				}
				return fmt.Errorf("preparation time unknown; rerun with a \"for N hours\" phrase or use 'remindctl schedule'")
			}
			if err != nil {
				return err
			}

			result := planResult{
				Description:    plan.Description,
				Location:       plan.Location,
				DueAt:          plan.DueAt,
				PrepMinutes:    plan.PrepMinutes,
				DurationSource: plan.DurationSource,
				PrepCategory:   plan.PrepCategory,
				Reminders:      plan.Reminders,
			}
			return render(cmd.OutOrStdout(), root.output, result, func(w io.Writer) {
				fmt.Fprintf(w, "Task:      %s\n", plan.Description)
				if plan.Location != "" {
					fmt.Fprintf(w, "Location:  %s\n", plan.Location)
				}
				fmt.Fprintf(w, "Due:       %s\n", formatInstant(plan.DueAt))
				fmt.Fprintf(w, "Prep:      %d minutes (%s, %s)\n", plan.PrepMinutes, plan.PrepCategory, plan.DurationSource)
				fmt.Fprintln(w, "Reminders:")
				for _, r := range plan.Reminders {
					fmt.Fprintf(w, "  - %s\n", formatInstant(r))
				}
			})
		},
	}

	cmd.Flags().BoolVar(&useOpenAI, "openai", false, "Ask OpenAI when the keyword table has no estimate (needs OPENAI_API_KEY)")
	cmd.Flags().StringVar(&now, "now", "", "Reference time for relative expressions such as \"tomorrow\"")

	return cmd
}
