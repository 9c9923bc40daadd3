package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "animgen"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	jobs               *prometheus.CounterVec
	jobsInFlight       prometheus.Gauge
	stageDuration      *prometheus.HistogramVec
	llmCalls           *prometheus.CounterVec
	validationAttempts prometheus.Histogram
	gatherer           prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Generation jobs by final outcome.",
		}, []string{"outcome"}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Generation jobs currently running.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"stage"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM gateway calls by stage and outcome.",
		}, []string{"stage", "outcome"}),
		validationAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_attempts",
			Help:      "Validation loop iterations per run.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		gatherer: reg,
	}

	reg.MustRegister(m.jobs, m.jobsInFlight, m.stageDuration, m.llmCalls, m.validationAttempts)
	return m
}

// JobStarted marks a job as running.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsInFlight.Inc()
}

// JobFinished records the outcome ("done", "failed") of a running job.
func (m *Metrics) JobFinished(outcome string) {
	if m == nil {
		return
	}
	m.jobsInFlight.Dec()
	m.jobs.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// LLMCall counts one gateway call.
func (m *Metrics) LLMCall(stage, outcome string) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(stage, outcome).Inc()
}

// ValidationAttempts records the number of loop iterations of one run.
func (m *Metrics) ValidationAttempts(n int) {
	if m == nil {
		return
	}
	m.validationAttempts.Observe(float64(n))
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
