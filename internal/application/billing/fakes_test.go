package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	domainBilling "github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Test doubles
// =============================================================================

// MockPaymentProvider is a mock implementation of domainBilling.PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) Charge(ctx context.Context, invoice domainBilling.Invoice) domainBilling.ChargeResult {
	args := m.Called(ctx, invoice)
	return args.Get(0).(domainBilling.ChargeResult)
}

// MockInvoiceLocker is a mock implementation of domainBilling.InvoiceLocker
type MockInvoiceLocker struct {
	mock.Mock
}

func (m *MockInvoiceLocker) TryLock(ctx context.Context, invoiceID int64, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, invoiceID, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockInvoiceLocker) Unlock(ctx context.Context, invoiceID int64, token string) error {
	args := m.Called(ctx, invoiceID, token)
	return args.Error(0)
}

// memoryInvoiceRepository stores invoices in a map and applies conditional updates
type memoryInvoiceRepository struct {
	mu       sync.Mutex
	invoices map[int64]domainBilling.Invoice
	updates  map[int64]int
	fetchErr error
}

func newMemoryInvoiceRepository(invoices ...domainBilling.Invoice) *memoryInvoiceRepository {
	r := &memoryInvoiceRepository{
		invoices: make(map[int64]domainBilling.Invoice),
		updates:  make(map[int64]int),
	}
	for _, inv := range invoices {
		r.invoices[inv.ID] = inv
	}
	return r
}

func (r *memoryInvoiceRepository) FetchAll(ctx context.Context) ([]domainBilling.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	out := make([]domainBilling.Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryInvoiceRepository) FetchByStatus(ctx context.Context, status domainBilling.InvoiceStatus) ([]domainBilling.Invoice, error) {
	all, err := r.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domainBilling.Invoice, 0, len(all))
	for _, inv := range all {
		if inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memoryInvoiceRepository) FetchByID(ctx context.Context, id int64) (domainBilling.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return domainBilling.Invoice{}, domainBilling.ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryInvoiceRepository) Update(ctx context.Context, invoice domainBilling.Invoice) (domainBilling.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[invoice.ID]; !ok {
		return domainBilling.Invoice{}, domainBilling.ErrInvoiceNotFound
	}
	r.invoices[invoice.ID] = invoice
	r.updates[invoice.ID]++
	return invoice, nil
}

func (r *memoryInvoiceRepository) UpdateStatus(ctx context.Context, invoice domainBilling.Invoice, expected domainBilling.InvoiceStatus) (domainBilling.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[invoice.ID]++
	stored, ok := r.invoices[invoice.ID]
	if !ok {
		return domainBilling.Invoice{}, domainBilling.ErrInvoiceNotFound
	}
	if stored.Status != expected {
		return domainBilling.Invoice{}, domainBilling.ErrConcurrentUpdate
	}
	stored.Status = invoice.Status
	r.invoices[invoice.ID] = stored
	return stored, nil
}

func (r *memoryInvoiceRepository) updateCount(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[id]
}

func (r *memoryInvoiceRepository) stored(id int64) domainBilling.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.invoices[id]
}

// memoryCustomerRepository serves customers from a map
type memoryCustomerRepository struct {
	customers map[int64]domainBilling.Customer
	err       error
}

func newMemoryCustomerRepository(customers ...domainBilling.Customer) *memoryCustomerRepository {
	r := &memoryCustomerRepository{customers: make(map[int64]domainBilling.Customer)}
	for _, c := range customers {
		r.customers[c.ID] = c
	}
	return r
}

func (r *memoryCustomerRepository) FetchAll(ctx context.Context) ([]domainBilling.Customer, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domainBilling.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryCustomerRepository) FetchByID(ctx context.Context, id int64) (domainBilling.Customer, error) {
	if r.err != nil {
		return domainBilling.Customer{}, r.err
	}
	c, ok := r.customers[id]
	if !ok {
		return domainBilling.Customer{}, domainBilling.ErrCustomerNotFound
	}
	return c, nil
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) all() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

// recordingMetrics counts metric calls
type recordingMetrics struct {
	mu      sync.Mutex
	charges map[string]int
	batches []int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{charges: make(map[string]int)}
}

func (m *recordingMetrics) RecordCharge(_ context.Context, result string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges[result]++
}

func (m *recordingMetrics) RecordBatch(_ context.Context, invoices int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, invoices)
}

func pendingInvoice(id, customerID int64, amount string, currency valueobject.Currency) domainBilling.Invoice {
	return domainBilling.Invoice{
		ID:         id,
		CustomerID: customerID,
		Amount:     valueobject.MustNewMoney(amount, currency),
		Status:     domainBilling.InvoiceStatusPending,
	}
}
