package billing

import "github.com/antaeus/billing/internal/domain/shared"

// Error taxonomy of the billing context. Compare with errors.Is.
var (
	ErrInvoiceNotFound  = shared.NewDomainError("INVOICE_NOT_FOUND", "Invoice not found")
	ErrCustomerNotFound = shared.NewDomainError("CUSTOMER_NOT_FOUND", "Customer not found")
	ErrCurrencyMismatch = shared.NewDomainError("CURRENCY_MISMATCH", "Customer currency does not match invoice currency")
	ErrPaymentDeclined  = shared.NewDomainError("PAYMENT_DECLINED", "Payment was declined by the provider")
	ErrTransient        = shared.NewDomainError("PAYMENT_UNAVAILABLE", "Payment provider temporarily unavailable")
	ErrConcurrentUpdate = shared.NewDomainError("CONCURRENT_UPDATE", "Invoice status was changed by another process")
	ErrInvalidInvoice   = shared.NewDomainError("INVALID_INVOICE", "Invalid invoice")
	ErrInvalidCustomer  = shared.NewDomainError("INVALID_CUSTOMER", "Stored customer record is invalid")
)
