// Package metrics holds the Prometheus collectors for the picker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yearbook/picker-server-go/internal/model"
)

const namespace = "picker"

type Metrics struct {
	registry *prometheus.Registry

	CodeLookups    *prometheus.CounterVec
	Confirmations  *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	RateLimited    *prometheus.CounterVec
}

// New builds the collectors on a private registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_lookups_total",
			Help:      "Access code submissions by outcome.",
		}, []string{"outcome"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Photo confirmation attempts by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Browser selection sessions currently held in memory.",
		}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CodeLookups,
		m.Confirmations,
		m.ActiveSessions,
		m.RateLimited,
	)
	return m
}

func (m *Metrics) ObserveCodeLookup(outcome model.Outcome) {
	m.CodeLookups.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveConfirmation(outcome model.Outcome) {
	m.Confirmations.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveRateLimited(limiter string) {
	m.RateLimited.WithLabelValues(limiter).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
