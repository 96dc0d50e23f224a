// Package metrics provides Prometheus metrics for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agents and delivery engine.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	ItemsProcessed  *prometheus.CounterVec
	DeliveriesTotal *prometheus.CounterVec
	RetriesTotal    prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "standup_agent_runs_total",
				Help: "Total agent runs by agent and outcome.",
			},
			[]string{"agent", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "standup_agent_run_duration_seconds",
				Help:    "Agent run duration by agent.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "standup_items_processed_total",
				Help: "Total work items processed by agent.",
			},
			[]string{"agent"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "standup_deliveries_total",
				Help: "Report delivery attempts by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		RetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "standup_delivery_retries_total",
				Help: "Total scheduled delivery retries.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.RunsTotal)
	reg.MustRegister(m.RunDuration)
	reg.MustRegister(m.ItemsProcessed)
	reg.MustRegister(m.DeliveriesTotal)
	reg.MustRegister(m.RetriesTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRun records one finished agent run.
func (m *Metrics) RecordRun(agent, status string, items int64, duration time.Duration) {
	m.RunsTotal.WithLabelValues(agent, status).Inc()
	m.RunDuration.WithLabelValues(agent).Observe(duration.Seconds())
	m.ItemsProcessed.WithLabelValues(agent).Add(float64(items))
}

// RecordDelivery records one delivery attempt outcome.
func (m *Metrics) RecordDelivery(kind, outcome string) {
	m.DeliveriesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRetry records one scheduled retry.
func (m *Metrics) RecordRetry() {
	m.RetriesTotal.Inc()
}
