// Package metrics exposes Prometheus collectors for the lifecycle and HTTP layers.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Transitions  *prometheus.CounterVec
	Conflicts    *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoutout",
			Name:      "transitions_total",
			Help:      "Lifecycle transition attempts by target status and outcome.",
		}, []string{"to", "outcome"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoutout",
			Name:      "version_conflicts_total",
			Help:      "Optimistic concurrency conflicts by operation.",
		}, []string{"op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shoutout",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shoutout",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(m.Transitions, m.Conflicts, m.HTTPRequests, m.HTTPDuration)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTransition is nil-safe so services can run without metrics.
func (m *Metrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to, outcome).Inc()
}

func (m *Metrics) ObserveConflict(op string) {
	if m == nil {
		return
	}
	m.Conflicts.WithLabelValues(op).Inc()
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}
