package billing

import (
	"fmt"
	"strings"

	"github.com/antaeus/billing/internal/domain/shared/valueobject"
)

// InvoiceStatus represents where an invoice is in its lifecycle
type InvoiceStatus string

const (
	// InvoiceStatusPending is the status of an invoice awaiting a charge
	InvoiceStatusPending InvoiceStatus = "PENDING"
	// InvoiceStatusPaid is absorbing: a paid invoice is never charged again
	InvoiceStatusPaid InvoiceStatus = "PAID"
	// InvoiceStatusError marks a terminal charge failure
	InvoiceStatusError InvoiceStatus = "ERROR"
)

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the known values
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusError:
		return true
	}
	return false
}

// ParseInvoiceStatus parses a case-insensitive status name
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	s := InvoiceStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown invoice status %q", ErrInvalidInvoice, value)
	}
	return s, nil
}

// Invoice is a billable charge for one customer. It is a value: status changes
// produce a new Invoice and never mutate the original.
type Invoice struct {
	ID         int64
	CustomerID int64
	Amount     valueobject.Money
	Status     InvoiceStatus
}

// NewInvoice validates and builds an invoice
func NewInvoice(id, customerID int64, amount valueobject.Money, status InvoiceStatus) (Invoice, error) {
	if customerID <= 0 {
		return Invoice{}, fmt.Errorf("%w: customer id must be positive", ErrInvalidInvoice)
	}
	if amount.Currency() == "" {
		return Invoice{}, fmt.Errorf("%w: amount currency is required", ErrInvalidInvoice)
	}
	if !status.IsValid() {
		return Invoice{}, fmt.Errorf("%w: unknown invoice status %q", ErrInvalidInvoice, status)
	}
	return Invoice{ID: id, CustomerID: customerID, Amount: amount, Status: status}, nil
}

// WithStatus returns a copy of the invoice in the given status
func (i Invoice) WithStatus(status InvoiceStatus) Invoice {
	i.Status = status
	return i
}

// IsPaid reports whether the invoice has already been settled
func (i Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// Currency returns the currency the invoice is denominated in
func (i Invoice) Currency() valueobject.Currency {
	return i.Amount.Currency()
}
