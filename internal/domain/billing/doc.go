// Package billing provides the domain model for invoice charging.
//
// This package implements the billing bounded context, which is responsible for:
//   - Invoices and their status lifecycle (PENDING -> PAID | ERROR)
//   - Customers and the currency they are billed in
//   - The outcome events emitted for every charge attempt
//
// Ports:
//   - InvoiceRepository / CustomerRepository: durable records
//   - PaymentProvider: the external charge operation, returning a typed ChargeResult
//   - InvoiceLocker: mutual exclusion between overlapping charges of one invoice
//
// The charge state machine itself lives in the application layer and depends only
// on the ports declared here.
package billing
