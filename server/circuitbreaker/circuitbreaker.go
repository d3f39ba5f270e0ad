// Package circuitbreaker guards calls to the model backend. It wraps
// sony/gobreaker and mirrors its state into Prometheus metrics.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen wraps every call rejected without reaching the backend.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint32        // Consecutive failures before opening circuit
	Timeout          time.Duration // Time spent open before probing again
	Interval         time.Duration // Closed-state period after which counts reset
	MaxRequests      uint32        // Requests allowed through while half-open
}

// CircuitBreaker fails fast while the backend is known to be failing. It
// never retries.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	stateGauge    prometheus.Gauge
	failuresCount prometheus.Counter
	tripsTotal    prometheus.Counter
}

// NewCircuitBreaker creates a breaker and registers its metrics with
// registry when it is not nil.
func NewCircuitBreaker(cfg Config, logger *zap.Logger, registry prometheus.Registerer) *CircuitBreaker {
	labels := prometheus.Labels{"name": cfg.Name}
	c := &CircuitBreaker{
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "aci_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			ConstLabels: labels,
		}),
		failuresCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "aci_circuit_breaker_failures_total",
			Help:        "Total number of failures recorded by the circuit breaker",
			ConstLabels: labels,
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "aci_circuit_breaker_trips_total",
			Help:        "Total number of times the circuit breaker has tripped",
			ConstLabels: labels,
		}),
	}

	if registry != nil {
		registry.MustRegister(c.stateGauge, c.failuresCount, c.tripsTotal)
	}

	threshold := cfg.FailureThreshold
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller giving up says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: c.onStateChange,
	})
	return c
}

func (c *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	c.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		c.tripsTotal.Inc()
		c.logger.Warn("Circuit breaker tripped", zap.String("name", name), zap.String("from", from.String()))
		return
	}
	c.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f unless the breaker is open. Rejections wrap ErrCircuitOpen.
func (c *CircuitBreaker) Execute(f func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrCircuitOpen, c.cb.Name(), err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.failuresCount.Inc()
	}
	return err
}

// State returns the current state of the circuit breaker
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Counts returns the breaker's request counters for the current generation.
func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.cb.Name()
}
