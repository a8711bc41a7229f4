// Package metrics exposes Prometheus collectors for the plot pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records
// nothing, so components can take one unconditionally.
type Metrics struct {
	registry *prometheus.Registry

	GenerationsStarted prometheus.Counter
	Superseded         *prometheus.CounterVec
	CacheHits          prometheus.Counter
	PollAttempts       prometheus.Counter
	Outcomes           *prometheus.CounterVec
	AttachFailures     prometheus.Counter
	FanOutSize         prometheus.Histogram
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		GenerationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridscope",
			Name:      "generations_started_total",
			Help:      "Plot generations minted after debouncing.",
		}),
		Superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridscope",
			Name:      "superseded_results_total",
			Help:      "Results dropped because a newer generation was current.",
		}, []string{"stage"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridscope",
			Name:      "cache_hits_total",
			Help:      "Submissions answered immediately by the backend cache.",
		}),
		PollAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridscope",
			Name:      "poll_attempts_total",
			Help:      "Task status calls issued.",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridscope",
			Name:      "generation_outcomes_total",
			Help:      "Settled generations by outcome kind.",
		}, []string{"outcome"}),
		AttachFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gridscope",
			Name:      "attach_failures_total",
			Help:      "Payloads dropped because the surface never became ready.",
		}),
		FanOutSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridscope",
			Name:      "fanout_facets",
			Help:      "Number of facets per fan-out generation.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32},
		}),
	}
	reg.MustRegister(
		m.GenerationsStarted,
		m.Superseded,
		m.CacheHits,
		m.PollAttempts,
		m.Outcomes,
		m.AttachFailures,
		m.FanOutSize,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GenerationStarted records a newly minted generation.
func (m *Metrics) GenerationStarted() {
	if m == nil {
		return
	}
	m.GenerationsStarted.Inc()
}

// Dropped records a result discarded at stage because it was stale.
func (m *Metrics) Dropped(stage string) {
	if m == nil {
		return
	}
	m.Superseded.WithLabelValues(stage).Inc()
}

// CacheHit records an immediate answer.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// Polled records one status call.
func (m *Metrics) Polled() {
	if m == nil {
		return
	}
	m.PollAttempts.Inc()
}

// Outcome records how a generation settled.
func (m *Metrics) Outcome(kind string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(kind).Inc()
}

// AttachFailed records a RenderError.
func (m *Metrics) AttachFailed() {
	if m == nil {
		return
	}
	m.AttachFailures.Inc()
}

// FanOut records the facet count of a fan-out generation.
func (m *Metrics) FanOut(n int) {
	if m == nil {
		return
	}
	m.FanOutSize.Observe(float64(n))
}
