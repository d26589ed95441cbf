// Package metrics defines the Prometheus collectors exported by the server.
//
// Collectors are registered on a registry passed in by the caller rather
// than the global default, so tests can build isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "studyguide"

// Outcome label values for generation requests.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics groups the application's collectors.
type Metrics struct {
	// GenerationRequests counts model calls by operation and outcome.
	GenerationRequests *prometheus.CounterVec

	// GenerationRetries counts retried upstream attempts by operation.
	GenerationRetries *prometheus.CounterVec

	// GenerationDuration observes the full duration of a model call,
	// retries included.
	GenerationDuration *prometheus.HistogramVec

	// HTTPRequests counts handled requests by route pattern, method and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes request latency by route pattern and method.
	HTTPDuration *prometheus.HistogramVec
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates the application collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GenerationRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_requests_total",
				Help:      "Total language model requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		GenerationRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_retries_total",
				Help:      "Total retried language model attempts",
			},
			[]string{"operation"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Language model request duration in seconds, retries included",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"operation"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method"},
		),
	}

	reg.MustRegister(
		m.GenerationRequests,
		m.GenerationRetries,
		m.GenerationDuration,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// ObserveGeneration records the outcome and duration of one model call.
func (m *Metrics) ObserveGeneration(operation string, seconds float64, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.GenerationRequests.WithLabelValues(operation, outcome).Inc()
	m.GenerationDuration.WithLabelValues(operation).Observe(seconds)
}
