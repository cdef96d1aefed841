// Package metrics exposes Prometheus instruments for story runs.
//
// A nil *Recorder is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the storyflow instruments.
type Recorder struct {
	registry prometheus.Gatherer

	stageDuration  *prometheus.HistogramVec
	stageErrors    *prometheus.CounterVec
	issuesCreated  *prometheus.CounterVec
	subtaskFailure prometheus.Counter
	runOutcomes    *prometheus.CounterVec
	tokens         *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

// New creates a Recorder registered on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the instruments on reg and serves them from
// gatherer. It panics on duplicate registration, like prometheus.MustRegister.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	r := &Recorder{
		registry: gatherer,
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storyflow_stage_duration_seconds",
				Help:    "Duration of workflow stages",
				Buckets: []float64{.05, .1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		stageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyflow_stage_errors_total",
				Help: "Workflow stages that ended with an error",
			},
			[]string{"stage"},
		),
		issuesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyflow_issues_created_total",
				Help: "Issues created in the tracker",
			},
			[]string{"kind"},
		),
		subtaskFailure: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storyflow_subtask_failures_total",
				Help: "Subtask branches that failed to create an issue",
			},
		),
		runOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyflow_runs_total",
				Help: "Finished runs by outcome",
			},
			[]string{"outcome"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyflow_llm_tokens_total",
				Help: "LLM tokens consumed",
			},
			[]string{"direction"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storyflow_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	reg.MustRegister(
		r.stageDuration,
		r.stageErrors,
		r.issuesCreated,
		r.subtaskFailure,
		r.runOutcomes,
		r.tokens,
		r.httpRequests,
	)
	return r
}

// ObserveStage records how long a stage ran and whether it failed.
func (r *Recorder) ObserveStage(stage string, d time.Duration, failed bool) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		r.stageErrors.WithLabelValues(stage).Inc()
	}
}

// IssueCreated counts a created issue; kind is "story" or "subtask".
func (r *Recorder) IssueCreated(kind string) {
	if r == nil {
		return
	}
	r.issuesCreated.WithLabelValues(kind).Inc()
}

// SubtaskFailed counts a failed subtask branch.
func (r *Recorder) SubtaskFailed() {
	if r == nil {
		return
	}
	r.subtaskFailure.Inc()
}

// RunFinished counts a terminal outcome.
func (r *Recorder) RunFinished(outcome string) {
	if r == nil {
		return
	}
	r.runOutcomes.WithLabelValues(outcome).Inc()
}

// Tokens adds LLM token usage.
func (r *Recorder) Tokens(in, out int) {
	if r == nil {
		return
	}
	r.tokens.WithLabelValues("in").Add(float64(in))
	r.tokens.WithLabelValues("out").Add(float64(out))
}

// HTTPRequest counts a served request.
func (r *Recorder) HTTPRequest(route, code string) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, code).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
