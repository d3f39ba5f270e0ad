// Package metrics holds the Prometheus registry of the server: HTTP traffic
// recorded by middleware, and dispatch and model call telemetry reported by
// the intent dispatcher.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teilomillet/aci/intent"
)

// Verify at compile time that Metrics implements intent.Observer
var _ intent.Observer = (*Metrics)(nil)

// Metrics encapsulates Prometheus metrics for the server.
type Metrics struct {
	registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec

	DispatchTotal     *prometheus.CounterVec
	ModelCallDuration *prometheus.HistogramVec
	ModelCallErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aci_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aci_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aci_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aci_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aci_rate_limit_hits_total",
				Help: "Total number of rate limit hits by client",
			},
			[]string{"client"},
		),
		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aci_dispatch_total",
				Help: "Total number of dispatched utterances by intent, response format and outcome",
			},
			[]string{"intent", "format", "outcome"},
		),
		ModelCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aci_model_call_duration_seconds",
				Help:    "Duration of model calls in seconds by pass",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"pass"},
		),
		ModelCallErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aci_model_call_errors_total",
				Help: "Total number of failed model calls by pass",
			},
			[]string{"pass"},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize some default metrics
	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/metrics", "200").Add(0)
	for _, pass := range []intent.Pass{intent.PassClassify, intent.PassFormat} {
		m.ModelCallErrors.WithLabelValues(string(pass)).Add(0)
	}

	return m
}

// Registry exposes the registry for collectors owned by other packages,
// such as the circuit breaker.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveModelCall implements intent.Observer.
func (m *Metrics) ObserveModelCall(pass intent.Pass, duration time.Duration, err error) {
	m.ModelCallDuration.WithLabelValues(string(pass)).Observe(duration.Seconds())
	if err != nil {
		m.ModelCallErrors.WithLabelValues(string(pass)).Inc()
	}
}

// ObserveDispatch implements intent.Observer.
func (m *Metrics) ObserveDispatch(intentName string, format intent.ResponseFormat, outcome string) {
	if intentName == "" {
		intentName = "none"
	}
	m.DispatchTotal.WithLabelValues(intentName, string(format), outcome).Inc()
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false, // Disable OpenMetrics format to avoid escaping=values
	})
}
