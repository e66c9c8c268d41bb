// Package metrics exposes the Prometheus instrumentation for the
// call-flow engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	EventsTotal     *prometheus.CounterVec
	SessionsCreated *prometheus.CounterVec
	Terminations    *prometheus.CounterVec
	ActionFailures  *prometheus.CounterVec
	Anomalies       *prometheus.CounterVec
	HandleDuration  *prometheus.HistogramVec
}

// New builds the metric set and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_events_total",
				Help: "Normalized provider events by type",
			},
			[]string{"type"},
		),
		SessionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_sessions_created_total",
				Help: "Call sessions created by flow",
			},
			[]string{"flow"},
		),
		Terminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_terminations_total",
				Help: "Sessions reaching a terminal state by reason",
			},
			[]string{"reason"},
		),
		ActionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_action_failures_total",
				Help: "Actions that failed after retries",
			},
			[]string{"action"},
		),
		Anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callflow_anomalies_total",
				Help: "Events dropped without a state change",
			},
			[]string{"kind"},
		),
		HandleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "callflow_event_handle_seconds",
				Help: "End-to-end event handling duration",
			},
			[]string{"type"},
		),
	}
	reg.MustRegister(
		m.EventsTotal,
		m.SessionsCreated,
		m.Terminations,
		m.ActionFailures,
		m.Anomalies,
		m.HandleDuration,
	)
	return m
}

// NewNop builds an unregistered metric set for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
