package billing

import (
	"github.com/antaeus/billing/internal/domain/shared"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
)

// AggregateTypeInvoice is the aggregate type carried by every billing event
const AggregateTypeInvoice = "Invoice"

// Event type names
const (
	EventTypeDuplicatePayment  = "billing.DuplicatePayment"
	EventTypeCustomerNotFound  = "billing.CustomerNotFound"
	EventTypeCurrencyMismatch  = "billing.CurrencyMismatch"
	EventTypeNetworkError      = "billing.NetworkError"
	EventTypeSuccessfulPayment = "billing.SuccessfulPayment"
	EventTypeFailedPayment     = "billing.FailedPayment"
)

// AllEventTypes lists every event the billing context emits
func AllEventTypes() []string {
	return []string{
		EventTypeDuplicatePayment,
		EventTypeCustomerNotFound,
		EventTypeCurrencyMismatch,
		EventTypeNetworkError,
		EventTypeSuccessfulPayment,
		EventTypeFailedPayment,
	}
}

// DuplicatePaymentEvent is raised when an already paid invoice is presented for charging
type DuplicatePaymentEvent struct {
	shared.BaseDomainEvent
	InvoiceID int64 `json:"invoice_id"`
}

// NewDuplicatePaymentEvent creates a DuplicatePaymentEvent
func NewDuplicatePaymentEvent(invoiceID int64) *DuplicatePaymentEvent {
	return &DuplicatePaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDuplicatePayment, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
	}
}

// CustomerNotFoundEvent is raised when the invoice's customer cannot be resolved
type CustomerNotFoundEvent struct {
	shared.BaseDomainEvent
	InvoiceID  int64 `json:"invoice_id"`
	CustomerID int64 `json:"customer_id"`
}

// NewCustomerNotFoundEvent creates a CustomerNotFoundEvent
func NewCustomerNotFoundEvent(invoiceID, customerID int64) *CustomerNotFoundEvent {
	return &CustomerNotFoundEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCustomerNotFound, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
		CustomerID:      customerID,
	}
}

// CurrencyMismatchEvent is raised when the customer's currency differs from the invoice's
type CurrencyMismatchEvent struct {
	shared.BaseDomainEvent
	InvoiceID  int64                `json:"invoice_id"`
	CustomerID int64                `json:"customer_id"`
	Currency   valueobject.Currency `json:"currency"`
}

// NewCurrencyMismatchEvent creates a CurrencyMismatchEvent carrying the invoice currency
func NewCurrencyMismatchEvent(invoiceID, customerID int64, currency valueobject.Currency) *CurrencyMismatchEvent {
	return &CurrencyMismatchEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCurrencyMismatch, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
		CustomerID:      customerID,
		Currency:        currency,
	}
}

// NetworkErrorEvent is raised when every charge attempt failed transiently
type NetworkErrorEvent struct {
	shared.BaseDomainEvent
	InvoiceID int64 `json:"invoice_id"`
}

// NewNetworkErrorEvent creates a NetworkErrorEvent
func NewNetworkErrorEvent(invoiceID int64) *NetworkErrorEvent {
	return &NetworkErrorEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNetworkError, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
	}
}

// SuccessfulPaymentEvent is raised when the provider accepted the charge
type SuccessfulPaymentEvent struct {
	shared.BaseDomainEvent
	InvoiceID int64             `json:"invoice_id"`
	Amount    valueobject.Money `json:"amount"`
}

// NewSuccessfulPaymentEvent creates a SuccessfulPaymentEvent
func NewSuccessfulPaymentEvent(invoiceID int64, amount valueobject.Money) *SuccessfulPaymentEvent {
	return &SuccessfulPaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSuccessfulPayment, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
		Amount:          amount,
	}
}

// FailedPaymentEvent is raised when the provider declined the charge
type FailedPaymentEvent struct {
	shared.BaseDomainEvent
	InvoiceID int64             `json:"invoice_id"`
	Amount    valueobject.Money `json:"amount"`
}

// NewFailedPaymentEvent creates a FailedPaymentEvent
func NewFailedPaymentEvent(invoiceID int64, amount valueobject.Money) *FailedPaymentEvent {
	return &FailedPaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFailedPayment, AggregateTypeInvoice, invoiceID),
		InvoiceID:       invoiceID,
		Amount:          amount,
	}
}
