package payment

import (
	"fmt"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Provider modes
const (
	ModeSimulated = "simulated"
	ModeHTTP      = "http"
)

// NewProvider builds the payment provider selected by cfg.Mode
func NewProvider(cfg config.PaymentConfig, logger *zap.Logger) (billing.PaymentProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Mode {
	case ModeSimulated, "":
		logger.Warn("Using simulated payment provider", zap.Float64("success_rate", cfg.SuccessRate))
		provider, err := NewSimulatedProvider(cfg.SuccessRate)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case ModeHTTP:
		logger.Info("Using HTTP payment provider", zap.String("endpoint", cfg.Endpoint))
		provider, err := NewHTTPProvider(HTTPProviderConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		}, WithProviderLogger(logger.Named("payment")))
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
}
