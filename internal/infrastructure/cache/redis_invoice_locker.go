package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKeyPrefix namespaces invoice lock keys
const DefaultLockKeyPrefix = "billing:invoice-lock:"

// unlockScript deletes the key only if it still holds our token, so an expired
// lock re-acquired by another process is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisInvoiceLocker implements billing.InvoiceLocker with SET NX PX.
// It excludes concurrent charges across every process sharing the Redis instance.
type RedisInvoiceLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisInvoiceLocker connects to Redis and verifies the connection
func NewRedisInvoiceLocker(cfg RedisConfig) (*RedisInvoiceLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisInvoiceLockerWithClient(client, ""), nil
}

// NewRedisInvoiceLockerWithClient creates a locker on an existing client
func NewRedisInvoiceLockerWithClient(client redis.UniversalClient, keyPrefix string) *RedisInvoiceLocker {
	if keyPrefix == "" {
		keyPrefix = DefaultLockKeyPrefix
	}
	return &RedisInvoiceLocker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (l *RedisInvoiceLocker) key(invoiceID int64) string {
	return l.keyPrefix + strconv.FormatInt(invoiceID, 10)
}

// TryLock sets the lock key if absent, with ttl as its expiry. The key holds
// a fresh token that Unlock must present.
func (l *RedisInvoiceLocker) TryLock(ctx context.Context, invoiceID int64, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key(invoiceID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock for invoice %d: %w", invoiceID, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock releases the lock if the key still holds token
func (l *RedisInvoiceLocker) Unlock(ctx context.Context, invoiceID int64, token string) error {
	if token == "" {
		return nil
	}
	if err := unlockScript.Run(ctx, l.client, []string{l.key(invoiceID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock for invoice %d: %w", invoiceID, err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisInvoiceLocker) Close() error {
	return l.client.Close()
}

var _ billing.InvoiceLocker = (*RedisInvoiceLocker)(nil)
