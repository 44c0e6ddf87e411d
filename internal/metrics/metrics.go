// Package metrics holds the Prometheus collectors for the flight lookup service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flightinfo"

// Metrics groups the service collectors. A nil *Metrics is valid and records
// nothing, so components can be used without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	lookups         *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	upstreamRetries *prometheus.CounterVec
	mergedLegs      prometheus.Counter
	flightsReturned prometheus.Histogram
}

// New creates the collectors on a dedicated registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Airport and aircraft lookups by outcome",
		}, []string{"kind", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Time spent on single upstream page fetches",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Upstream fetch retries",
		}, []string{"endpoint"}),
		mergedLegs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_legs_total",
			Help:      "Offshore legs folded into another flight",
		}),
		flightsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flights_returned",
			Help:      "Flights returned per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}

	reg.MustRegister(
		m.lookups,
		m.upstreamLatency,
		m.upstreamRetries,
		m.mergedLegs,
		m.flightsReturned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Lookup counts one lookup of kind ("airport", "aircraft") with outcome
// ("ok", "empty", "error").
func (m *Metrics) Lookup(kind, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(kind, outcome).Inc()
}

// ObserveUpstream records the duration of one upstream fetch attempt.
func (m *Metrics) ObserveUpstream(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Retry counts one upstream retry.
func (m *Metrics) Retry(endpoint string) {
	if m == nil {
		return
	}
	m.upstreamRetries.WithLabelValues(endpoint).Inc()
}

// MergedLegs adds n legs absorbed by offshore merging.
func (m *Metrics) MergedLegs(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mergedLegs.Add(float64(n))
}

// FlightsReturned records the size of one query response.
func (m *Metrics) FlightsReturned(n int) {
	if m == nil {
		return
	}
	m.flightsReturned.Observe(float64(n))
}
