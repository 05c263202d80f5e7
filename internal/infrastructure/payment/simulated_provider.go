package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/antaeus/billing/internal/domain/billing"
)

// SimulatedProvider accepts a configurable share of charges and declines the rest.
// It stands in for a real provider in development and demos.
type SimulatedProvider struct {
	successRate float64

	mu   sync.Mutex
	rand *rand.Rand

	calls atomic.Int64
}

// SimulatedOption configures a SimulatedProvider
type SimulatedOption func(*SimulatedProvider)

// WithRand fixes the random source, for reproducible runs
func WithRand(r *rand.Rand) SimulatedOption {
	return func(p *SimulatedProvider) {
		p.rand = r
	}
}

// NewSimulatedProvider creates a provider that accepts with probability successRate
func NewSimulatedProvider(successRate float64, opts ...SimulatedOption) (*SimulatedProvider, error) {
	if successRate < 0 || successRate > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSuccessRate, successRate)
	}
	p := &SimulatedProvider{
		successRate: successRate,
		rand:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Charge rolls the dice. A cancelled context is reported as a transient failure.
func (p *SimulatedProvider) Charge(ctx context.Context, invoice billing.Invoice) billing.ChargeResult {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return billing.Failed(billing.FailureTransient, err)
	}

	p.mu.Lock()
	roll := p.rand.Float64()
	p.mu.Unlock()

	if roll < p.successRate {
		return billing.Accepted()
	}
	return billing.Declined()
}

// Calls returns how many charges were attempted
func (p *SimulatedProvider) Calls() int64 {
	return p.calls.Load()
}

var _ billing.PaymentProvider = (*SimulatedProvider)(nil)
