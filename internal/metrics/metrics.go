// Package metrics exposes Prometheus counters for the generation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics. A nil *Metrics is a valid no-op
// recorder so components can be built without one in tests.
type Metrics struct {
	TurnsTotal      *prometheus.CounterVec
	TurnDuration    prometheus.Histogram
	PersistenceOps  *prometheus.CounterVec
	PreviewBoots    *prometheus.CounterVec
	RejectedPrompts prometheus.Counter
	ActiveListeners prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_turns_total",
				Help: "Completed generation turns by outcome.",
			},
			[]string{"status"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagegen_turn_duration_seconds",
				Help:    "Time from prompt submission to the end of the model stream.",
				Buckets: prometheus.DefBuckets,
			},
		),
		PersistenceOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_persistence_ops_total",
				Help: "Persistence gateway calls by operation and result.",
			},
			[]string{"op", "status"},
		),
		PreviewBoots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_preview_boots_total",
				Help: "Sandbox boots by bundle kind.",
			},
			[]string{"kind"},
		),
		RejectedPrompts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pagegen_rejected_prompts_total",
				Help: "Prompts refused because a turn was already in flight.",
			},
		),
		ActiveListeners: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagegen_preview_listeners",
				Help: "Connected preview stream subscribers.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.TurnsTotal)
	reg.MustRegister(m.TurnDuration)
	reg.MustRegister(m.PersistenceOps)
	reg.MustRegister(m.PreviewBoots)
	reg.MustRegister(m.RejectedPrompts)
	reg.MustRegister(m.ActiveListeners)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordTurn(status string, seconds float64) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(status).Inc()
	m.TurnDuration.Observe(seconds)
}

func (m *Metrics) RecordPersistence(op string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PersistenceOps.WithLabelValues(op, status).Inc()
}

func (m *Metrics) RecordBoot(kind string) {
	if m == nil {
		return
	}
	m.PreviewBoots.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRejectedPrompt() {
	if m == nil {
		return
	}
	m.RejectedPrompts.Inc()
}

func (m *Metrics) AddListeners(delta float64) {
	if m == nil {
		return
	}
	m.ActiveListeners.Add(delta)
}
