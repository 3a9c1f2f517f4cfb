package reminder

import (
	"context"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/smart-reminders/internal/services/reminder"

// Parser extracts a due time, description and optional duration from free text
type Parser interface {
	Parse(ctx context.Context, text string) (*models.ParsedReminder, error)
}

// Estimator guesses how many minutes a described task needs.
// ok=false means the estimate is unknown; err is reserved for collaborator failures.
type Estimator interface {
	EstimateMinutes(ctx context.Context, description string) (minutes int, ok bool, err error)
}

// Recorder receives planning outcomes (implemented by internal/metrics)
type Recorder interface {
	ObservePlan(category scheduler.PrepCategory, reminders int)
	IncClarificationRequired()
	IncParseFailure()
}

// Plan is the full outcome of turning reminder text into a schedule
type Plan struct {
	Description    string                 `json:"description"`
	Location       string                 `json:"location,omitempty"`
	DueAt          time.Time              `json:"due_at"`
	PrepMinutes    int                    `json:"prep_minutes"`
	DurationSource models.DurationSource  `json:"duration_source"`
	PrepCategory   scheduler.PrepCategory `json:"prep_category"`
	Reminders      []time.Time            `json:"reminders"`
}

// Orchestrator composes the parser, the estimator and the schedule generator
type Orchestrator struct {
	parser    Parser
	estimator Estimator
	logger    *zap.Logger
	recorder  Recorder
	tracer    trace.Tracer
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger used for planning events
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// NewOrchestrator creates an orchestrator. estimator may be nil, in which case
// a missing duration always requires clarification.
func NewOrchestrator(parser Parser, estimator Estimator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		parser:    parser,
		estimator: estimator,
		logger:    zap.NewNop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateFromText parses text and returns its reminder schedule
func (o *Orchestrator) CreateFromText(ctx context.Context, text string) ([]time.Time, error) {
	plan, err := o.Plan(ctx, text)
	if err != nil {
		return nil, err
	}
	return plan.Reminders, nil
}

// Plan parses text, resolves the preparation time and generates the schedule.
// Either a complete plan or exactly one error is returned.
func (o *Orchestrator) Plan(ctx context.Context, text string) (*Plan, error) {
	ctx, span := o.tracer.Start(ctx, "reminder.plan")
	defer span.End()

	parsed, err := o.parse(ctx, text)
	if err != nil {
		if o.recorder != nil {
			o.recorder.IncParseFailure()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}

	source := models.DurationSourceParsed
	minutes, ok := parsed.DurationMinutes()
	if !ok {
		source = models.DurationSourceEstimated
		minutes, ok, err = o.estimate(ctx, parsed.Description)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "estimate failed")
			return nil, err
		}
		if !ok {
			if o.recorder != nil {
				o.recorder.IncClarificationRequired()
			}
			o.logger.Info("reminder_needs_clarification",
				zap.Int("description_length", len(parsed.Description)),
			)
			span.SetAttributes(attribute.Bool("reminder.clarification_required", true))
			return nil, &ClarificationRequiredError{
				Description: parsed.Description,
				Question:    DefaultClarificationQuestion,
				DueAt:       parsed.When,
				Location:    parsed.Location,
			}
		}
	}

	plan, err := o.Reschedule(parsed.When, minutes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		return nil, err
	}
	plan.Description = parsed.Description
	plan.Location = parsed.Location
	plan.DurationSource = source

	span.SetAttributes(
		attribute.String("reminder.prep_category", string(plan.PrepCategory)),
		attribute.String("reminder.duration_source", string(source)),
		attribute.Int("reminder.count", len(plan.Reminders)),
	)
	o.logger.Debug("reminder_planned",
		zap.Time("due_at", plan.DueAt),
		zap.Int("prep_minutes", plan.PrepMinutes),
		zap.String("duration_source", string(source)),
		zap.Int("reminder_count", len(plan.Reminders)),
	)
	return plan, nil
}

// Reschedule builds a plan directly from a due time and preparation minutes,
// for example after the user answered a clarification question.
func (o *Orchestrator) Reschedule(dueAt time.Time, prepMinutes int) (*Plan, error) {
	category, err := scheduler.ClassifyPrep(prepMinutes)
	if err != nil {
		return nil, err
	}
	reminders, err := scheduler.Generate(dueAt, prepMinutes)
	if err != nil {
		return nil, err
	}
	if o.recorder != nil {
		o.recorder.ObservePlan(category, len(reminders))
	}
	return &Plan{
		DueAt:          dueAt,
		PrepMinutes:    prepMinutes,
		DurationSource: models.DurationSourceUser,
		PrepCategory:   category,
		Reminders:      reminders,
	}, nil
}

func (o *Orchestrator) parse(ctx context.Context, text string) (*models.ParsedReminder, error) {
	ctx, span := o.tracer.Start(ctx, "reminder.parse")
	defer span.End()
	return o.parser.Parse(ctx, text)
}

func (o *Orchestrator) estimate(ctx context.Context, description string) (int, bool, error) {
	if o.estimator == nil {
		return 0, false, nil
	}
	ctx, span := o.tracer.Start(ctx, "reminder.estimate")
	defer span.End()
	minutes, ok, err := o.estimator.EstimateMinutes(ctx, description)
	span.SetAttributes(attribute.Bool("estimate.known", ok))
	return minutes, ok, err
}
