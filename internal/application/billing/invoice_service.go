package billing

import (
	"context"
	"fmt"

	domainBilling "github.com/antaeus/billing/internal/domain/billing"
	"go.uber.org/zap"
)

// InvoiceService is the read/write surface over invoices used by the API
type InvoiceService struct {
	repo   domainBilling.InvoiceRepository
	logger *zap.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(repo domainBilling.InvoiceRepository, logger *zap.Logger) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{repo: repo, logger: logger.Named("invoices")}
}

// FetchAll returns every invoice
func (s *InvoiceService) FetchAll(ctx context.Context) ([]domainBilling.Invoice, error) {
	invoices, err := s.repo.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch invoices: %w", err)
	}
	return invoices, nil
}

// FetchByStatus returns invoices in the given status
func (s *InvoiceService) FetchByStatus(ctx context.Context, status domainBilling.InvoiceStatus) ([]domainBilling.Invoice, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domainBilling.ErrInvalidInvoice, status)
	}
	invoices, err := s.repo.FetchByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("fetch %s invoices: %w", status, err)
	}
	return invoices, nil
}

// FetchPending returns invoices waiting to be charged
func (s *InvoiceService) FetchPending(ctx context.Context) ([]domainBilling.Invoice, error) {
	return s.FetchByStatus(ctx, domainBilling.InvoiceStatusPending)
}

// Fetch returns one invoice or ErrInvoiceNotFound
func (s *InvoiceService) Fetch(ctx context.Context, id int64) (domainBilling.Invoice, error) {
	return s.repo.FetchByID(ctx, id)
}

// Update overwrites an invoice
func (s *InvoiceService) Update(ctx context.Context, invoice domainBilling.Invoice) (domainBilling.Invoice, error) {
	if !invoice.Status.IsValid() {
		return domainBilling.Invoice{}, fmt.Errorf("%w: unknown status %q", domainBilling.ErrInvalidInvoice, invoice.Status)
	}
	updated, err := s.repo.Update(ctx, invoice)
	if err != nil {
		return domainBilling.Invoice{}, err
	}
	s.logger.Info("Invoice updated",
		zap.Int64("invoice_id", updated.ID),
		zap.String("status", updated.Status.String()),
	)
	return updated, nil
}
