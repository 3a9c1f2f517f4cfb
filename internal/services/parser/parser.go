package parser

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	durationPattern = regexp.MustCompile(`(?i)\bfor\s+(?:(\d+)\s*(minutes?|mins?|hours?|hrs?|days?)|an?\s*(hour|minute|day))\b`)
	isoDatePattern  = regexp.MustCompile(`(?i)(?:\bon\s+)?\b(\d{4})-(\d{2})-(\d{2})(?:\s*(?:at\s+)?(\d{1,2}):(\d{2}))?\b`)
	locationPattern = regexp.MustCompile(`\bat\s+([A-Z][\w'&-]*(?:\s+[A-Z][\w'&-]*)*)`)
	spacePattern    = regexp.MustCompile(`\s+`)
	danglingPattern = regexp.MustCompile(`(?i)(?:\s+(?:at|on|by|in|for))+$`)
)

// Parser extracts due time, description, duration and location from reminder text.
// It holds no global state; construct one per process and share it.
type Parser struct {
	engine   *when.Parser
	now      func() time.Time
	location *time.Location
}

// Option configures a Parser
type Option func(*Parser)

// WithClock sets the reference time source used for relative expressions
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocation sets the time zone parsed times are resolved in
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// New creates a parser with English and common date rules
func New(opts ...Option) *Parser {
	engine := when.New(nil)
	engine.Add(en.All...)
	engine.Add(common.All...)

	p := &Parser{
		engine:   engine,
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse turns text such as "Pay rent tomorrow at 3pm for 2 hours" into a ParsedReminder.
// Failures are always *ParseError.
func (p *Parser) Parse(ctx context.Context, text string) (*models.ParsedReminder, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Text: text, Err: ErrEmptyText}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	duration, remaining, err := extractDuration(text)
	if err != nil {
		return nil, &ParseError{Text: text, Err: err}
	}

	dueAt, remaining, err := p.extractDateTime(remaining)
	if err != nil {
		return nil, &ParseError{Text: text, Err: err}
	}

	description := cleanDescription(remaining)
	if description == "" {
		return nil, &ParseError{Text: text, Err: ErrNoDescription}
	}

	return &models.ParsedReminder{
		Description: description,
		When:        dueAt,
		Duration:    duration,
		Location:    extractLocation(description),
	}, nil
}

// extractDuration finds a "for N hours" style phrase and returns the text without it.
// Amounts that do not fit in a time.Duration are rejected with ErrDurationTooLarge.
func extractDuration(text string) (*time.Duration, string, error) {
	m := durationPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, text, nil
	}

	unitName := strings.ToLower(m[3])
	if m[1] != "" {
		unitName = strings.ToLower(m[2])
	}

	var unit time.Duration
	switch {
	case strings.HasPrefix(unitName, "min"):
		unit = time.Minute
	case strings.HasPrefix(unitName, "h"):
		unit = time.Hour
	case strings.HasPrefix(unitName, "day"):
		unit = 24 * time.Hour
	default:
		return nil, text, nil
	}

	amount := int64(1)
	if m[1] != "" {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > math.MaxInt64/int64(unit) {
			return nil, text, ErrDurationTooLarge
		}
		amount = n
	}

	d := time.Duration(amount) * unit
	return &d, durationPattern.ReplaceAllString(text, " "), nil
}

// extractDateTime resolves the first date/time expression; ISO dates win over relative phrases
func (p *Parser) extractDateTime(text string) (time.Time, string, error) {
	if loc := isoDatePattern.FindStringSubmatchIndex(text); loc != nil {
		m := isoDatePattern.FindStringSubmatch(text)
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, minute := 0, 0
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 && hour < 24 && minute < 60 {
			t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, p.location)
			return t, text[:loc[0]] + " " + text[loc[1]:], nil
		}
	}

	base := p.now().In(p.location)
	r, err := p.engine.Parse(text, base)
	if err != nil {
		return time.Time{}, text, err
	}
	if r == nil {
		return time.Time{}, text, ErrNoDateTime
	}
	end := r.Index + len(r.Text)
	if r.Index < 0 || end > len(text) {
		return r.Time, strings.Replace(text, r.Text, " ", 1), nil
	}
	return r.Time, text[:r.Index] + " " + text[end:], nil
}

// extractLocation returns a capitalised place following "at", e.g. "at Central Park"
func extractLocation(description string) string {
	m := locationPattern.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// cleanDescription collapses whitespace and drops prepositions left behind by removed phrases
func cleanDescription(text string) string {
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.Trim(text, ", .")
	text = danglingPattern.ReplaceAllString(text, "")
	return strings.Trim(text, ", .")
}
