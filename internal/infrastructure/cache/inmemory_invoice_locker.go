package cache

import (
	"context"
	"sync"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/google/uuid"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// InMemoryInvoiceLocker implements billing.InvoiceLocker with a map of expiring entries.
// It only excludes charges within one process.
type InMemoryInvoiceLocker struct {
	mu        sync.Mutex
	locks     map[int64]lease
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryInvoiceLocker creates a locker and starts a goroutine sweeping expired locks
func NewInMemoryInvoiceLocker() *InMemoryInvoiceLocker {
	l := &InMemoryInvoiceLocker{
		locks:    make(map[int64]lease),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

// TryLock takes the lock unless an unexpired one is held
func (l *InMemoryInvoiceLocker) TryLock(ctx context.Context, invoiceID int64, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[invoiceID]; ok && now.Before(held.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[invoiceID] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock releases the lock if token still owns it. Anything else is a no-op.
func (l *InMemoryInvoiceLocker) Unlock(ctx context.Context, invoiceID int64, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.locks[invoiceID]; ok && held.token == token {
		delete(l.locks, invoiceID)
	}
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *InMemoryInvoiceLocker) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()
	})
	return nil
}

func (l *InMemoryInvoiceLocker) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *InMemoryInvoiceLocker) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, held := range l.locks {
		if !now.Before(held.expiresAt) {
			delete(l.locks, id)
		}
	}
}

// Size returns the number of held or not yet swept locks
func (l *InMemoryInvoiceLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ billing.InvoiceLocker = (*InMemoryInvoiceLocker)(nil)
