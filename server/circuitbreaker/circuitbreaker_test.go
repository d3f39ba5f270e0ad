package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCircuitBreaker(t *testing.T) {
	registry := prometheus.NewRegistry()
	cb := NewCircuitBreaker(Config{
		Name:             "model",
		FailureThreshold: 2,
		Timeout:          50 * time.Millisecond,
		MaxRequests:      1,
	}, zaptest.NewLogger(t), registry)

	boom := errors.New("boom")

	t.Run("stays closed below threshold", func(t *testing.T) {
		assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, uint32(0), cb.Counts().ConsecutiveFailures)
	})

	t.Run("opens at threshold and fails fast", func(t *testing.T) {
		cb.Execute(func() error { return boom })
		cb.Execute(func() error { return boom })
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		called := false
		err := cb.Execute(func() error { called = true; return nil })
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
		assert.Equal(t, float64(1), testutil.ToFloat64(cb.tripsTotal))
		assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(cb.stateGauge))
	})

	t.Run("half-open trial request closes it again", func(t *testing.T) {
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())
		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})
}

func TestCircuitBreaker_CanceledIsNotFailure(t *testing.T) {
	cb := NewCircuitBreaker(Config{Name: "model", FailureThreshold: 1}, zaptest.NewLogger(t), nil)

	err := cb.Execute(func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, float64(0), testutil.ToFloat64(cb.failuresCount))
}
