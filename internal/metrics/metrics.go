package metrics

import (
	"errors"
	"net/http"

	"github.com/benvon/smart-reminders/internal/services/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smart_reminders"

// Metrics exposes Prometheus collectors for reminder planning and job processing.
// It implements reminder.Recorder.
type Metrics struct {
	registry         *prometheus.Registry
	plansTotal       *prometheus.CounterVec
	remindersPerPlan prometheus.Histogram
	clarifications   prometheus.Counter
	parseFailures    prometheus.Counter
	jobsProcessed    *prometheus.CounterVec
}

// New creates collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := MustNewMetrics(reg)
	m.registry = reg
	return m
}

// MustNewMetrics registers the reminder collectors with reg.
// Registering twice on the same registerer reuses the existing collectors.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		plansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "plans_total",
			Help:      "Reminder schedules generated, by preparation category.",
		}, []string{"prep_category"}),
		remindersPerPlan: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "reminders_per_plan",
			Help:      "Number of reminder instants in each generated schedule.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		clarifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "clarifications_required_total",
			Help:      "Plans that stopped because the task duration was unknown.",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "planner",
			Name:      "parse_failures_total",
			Help:      "Reminder texts that could not be parsed.",
		}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_processed_total",
			Help:      "Queue jobs handled by the worker, by outcome.",
		}, []string{"outcome"}),
	}

	m.plansTotal = register(reg, m.plansTotal)
	m.remindersPerPlan = register(reg, m.remindersPerPlan)
	m.clarifications = register(reg, m.clarifications)
	m.parseFailures = register(reg, m.parseFailures)
	m.jobsProcessed = register(reg, m.jobsProcessed)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObservePlan records a generated schedule
func (m *Metrics) ObservePlan(category scheduler.PrepCategory, reminders int) {
	if m == nil {
		return
	}
	m.plansTotal.WithLabelValues(string(category)).Inc()
	m.remindersPerPlan.Observe(float64(reminders))
}

// IncClarificationRequired counts a plan that needs a duration from the user
func (m *Metrics) IncClarificationRequired() {
	if m == nil {
		return
	}
	m.clarifications.Inc()
}

// IncParseFailure counts unparseable reminder text
func (m *Metrics) IncParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

// IncJob counts a processed queue job. outcome is one of
// "scheduled", "needs_clarification", "failed", "retried".
func (m *Metrics) IncJob(outcome string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
