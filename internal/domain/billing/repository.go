package billing

import (
	"context"
	"time"
)

// InvoiceRepository is the durable store of invoices
type InvoiceRepository interface {
	FetchAll(ctx context.Context) ([]Invoice, error)
	FetchByStatus(ctx context.Context, status InvoiceStatus) ([]Invoice, error)
	// FetchByID returns ErrInvoiceNotFound when the id does not exist
	FetchByID(ctx context.Context, id int64) (Invoice, error)
	// Update overwrites the stored invoice. Returns ErrInvoiceNotFound when the id does not exist.
	Update(ctx context.Context, invoice Invoice) (Invoice, error)
	// UpdateStatus writes invoice.Status only if the stored status still equals expected.
	// Returns ErrConcurrentUpdate when it does not, ErrInvoiceNotFound when the row is gone.
	UpdateStatus(ctx context.Context, invoice Invoice, expected InvoiceStatus) (Invoice, error)
}

// CustomerRepository is the read side of customers
type CustomerRepository interface {
	FetchAll(ctx context.Context) ([]Customer, error)
	// FetchByID returns ErrCustomerNotFound when the id does not exist and
	// ErrInvalidCustomer when the stored record has no usable currency.
	FetchByID(ctx context.Context, id int64) (Customer, error)
}

// InvoiceLocker provides mutual exclusion per invoice id across concurrent charges
type InvoiceLocker interface {
	// TryLock acquires the lock without waiting. Returns false if it is held
	// elsewhere; on success the token identifies this acquisition.
	TryLock(ctx context.Context, invoiceID int64, ttl time.Duration) (token string, acquired bool, err error)
	// Unlock releases the lock only while it is still held under token, so a
	// holder whose ttl ran out cannot release the next holder's lock.
	Unlock(ctx context.Context, invoiceID int64, token string) error
}
