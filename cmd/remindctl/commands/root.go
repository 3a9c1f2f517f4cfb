package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benvon/smart-reminders/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// inputLayouts are tried in order when parsing --due and --now
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

type rootOptions struct {
	output string
	debug  bool
}

// NewRootCmd creates the remindctl command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "remindctl",
		Short: "Plan preparation reminders from the command line",
		Long: "remindctl computes reminder schedules locally: from a due time and " +
			"preparation estimate, or from free text such as \"write report by friday 5pm\".",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case OutputText, OutputJSON, OutputYAML:
				return nil
			default:
				return fmt.Errorf("--output must be one of text, json, yaml (got %q)", opts.output)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", OutputText, "Output format: text, json or yaml")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newScheduleCmd(opts))
	cmd.AddCommand(newOffsetCmd(opts))
	cmd.AddCommand(newPlanCmd(opts))

	return cmd
}

// loadLocation resolves REMINDER_TIMEZONE for naive --due values
func loadLocation() (*config.Config, *time.Location, error) {
	cfg, err := config.LoadLocal()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loc, nil
}

// parseTime accepts RFC 3339 or a local "2006-01-02 15:04" style value
func parseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("time value is empty")
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 or YYYY-MM-DD HH:MM", value)
}

// render writes v as JSON or YAML, or calls text for the human format
func render(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

func formatInstant(t time.Time) string {
	return t.Format("Mon 2006-01-02 15:04 MST")
}
