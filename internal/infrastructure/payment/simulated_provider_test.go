package payment

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSimulatedProvider_Rates(t *testing.T) {
	t.Run("always accepts", func(t *testing.T) {
		p, err := NewSimulatedProvider(1)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			assert.Equal(t, billing.ChargeAccepted, p.Charge(context.Background(), testInvoice()).Status)
		}
		assert.Equal(t, int64(20), p.Calls())
	})

	t.Run("always declines", func(t *testing.T) {
		p, err := NewSimulatedProvider(0)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			assert.Equal(t, billing.ChargeDeclined, p.Charge(context.Background(), testInvoice()).Status)
		}
	})

	t.Run("seeded source is reproducible", func(t *testing.T) {
		run := func() []billing.ChargeStatus {
			p, err := NewSimulatedProvider(0.5, WithRand(rand.New(rand.NewPCG(1, 2))))
			require.NoError(t, err)
			out := make([]billing.ChargeStatus, 0, 10)
			for i := 0; i < 10; i++ {
				out = append(out, p.Charge(context.Background(), testInvoice()).Status)
			}
			return out
		}
		assert.Equal(t, run(), run())
	})
}

func TestSimulatedProvider_InvalidRate(t *testing.T) {
	_, err := NewSimulatedProvider(1.5)
	assert.ErrorIs(t, err, ErrInvalidSuccessRate)

	_, err = NewSimulatedProvider(-0.1)
	assert.ErrorIs(t, err, ErrInvalidSuccessRate)
}

func TestSimulatedProvider_CancelledContext(t *testing.T) {
	p, err := NewSimulatedProvider(1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.Charge(ctx, testInvoice())
	assert.True(t, result.IsTransient())
	assert.ErrorIs(t, result.Err, context.Canceled)
}

func TestNewProvider(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("simulated", func(t *testing.T) {
		p, err := NewProvider(config.PaymentConfig{Mode: ModeSimulated, SuccessRate: 0.8}, logger)
		require.NoError(t, err)
		assert.IsType(t, &SimulatedProvider{}, p)
	})

	t.Run("http", func(t *testing.T) {
		p, err := NewProvider(config.PaymentConfig{Mode: ModeHTTP, Endpoint: "https://pay.example.com", Timeout: time.Second}, logger)
		require.NoError(t, err)
		assert.IsType(t, &HTTPProvider{}, p)
	})

	t.Run("http without endpoint", func(t *testing.T) {
		p, err := NewProvider(config.PaymentConfig{Mode: ModeHTTP, Timeout: time.Second}, logger)
		assert.ErrorIs(t, err, ErrMissingEndpoint)
		assert.Nil(t, p)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := NewProvider(config.PaymentConfig{Mode: "stripe"}, logger)
		assert.ErrorIs(t, err, ErrUnknownMode)
	})
}
