package cache

import (
	"fmt"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Lock backends accepted by the factory
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Locker is an invoice locker that owns resources
type Locker interface {
	billing.InvoiceLocker
	Close() error
}

// InvoiceLockerFactory creates invoice lockers based on configuration
type InvoiceLockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// InvoiceLockerFactoryOption is a functional option for configuring the factory
type InvoiceLockerFactoryOption func(*InvoiceLockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) InvoiceLockerFactoryOption {
	return func(f *InvoiceLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory locker when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) InvoiceLockerFactoryOption {
	return func(f *InvoiceLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewInvoiceLockerFactory creates a new factory
func NewInvoiceLockerFactory(cfg config.RedisConfig, opts ...InvoiceLockerFactoryOption) *InvoiceLockerFactory {
	f := &InvoiceLockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns the locker for a backend name. BackendNone yields a nil locker,
// which makes the billing engine rely on the conditional status update alone.
func (f *InvoiceLockerFactory) Create(backend string) (Locker, error) {
	switch backend {
	case BackendNone:
		f.logger.Warn("Invoice locking disabled")
		return nil, nil
	case BackendMemory, "":
		f.logger.Info("Using in-memory invoice locker")
		return NewInMemoryInvoiceLocker(), nil
	case BackendRedis:
		return f.createRedis()
	}
	return nil, fmt.Errorf("unknown lock backend %q", backend)
}

func (f *InvoiceLockerFactory) createRedis() (Locker, error) {
	locker, err := NewRedisInvoiceLocker(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis invoice locker", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for invoice locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory invoice locker. "+
		"Charges running in other instances are not excluded.",
		zap.Error(err),
	)
	return NewInMemoryInvoiceLocker(), nil
}
