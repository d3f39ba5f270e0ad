package provider

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/teilomillet/aci/intent"
	"github.com/teilomillet/aci/server/circuitbreaker"
)

// Guarded runs every completion through a circuit breaker. Calls are never
// retried; an open breaker fails the request immediately.
type Guarded struct {
	next    intent.Model
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuarded wraps next with breaker.
func NewGuarded(next intent.Model, breaker *circuitbreaker.CircuitBreaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Complete implements intent.Model.
func (g *Guarded) Complete(ctx context.Context, req intent.CompletionRequest) (*intent.Completion, error) {
	var completion *intent.Completion
	err := g.breaker.Execute(func() error {
		var err error
		completion, err = g.next.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// State returns the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}
