package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainBilling "github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared"
	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// BillingServiceConfig contains configuration for charging invoices
type BillingServiceConfig struct {
	Retry RetryPolicy
	// LockTTL bounds how long an invoice lock survives a crashed holder
	LockTTL time.Duration
}

// DefaultBillingServiceConfig returns default configuration
func DefaultBillingServiceConfig() BillingServiceConfig {
	return BillingServiceConfig{
		Retry:   DefaultRetryPolicy(),
		LockTTL: 5 * time.Minute,
	}
}

// BillingServiceOption configures optional collaborators
type BillingServiceOption func(*BillingService)

// WithInvoiceLocker serialises overlapping charges of the same invoice
func WithInvoiceLocker(locker domainBilling.InvoiceLocker) BillingServiceOption {
	return func(s *BillingService) {
		s.locker = locker
	}
}

// WithChargeMetrics records outcomes and attempts
func WithChargeMetrics(metrics ChargeMetrics) BillingServiceOption {
	return func(s *BillingService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// BillingService charges single invoices. Every decided call ends in exactly
// one published event and, except for already paid invoices, one status write.
// A charge that loses the conditional write to another process publishes nothing.
type BillingService struct {
	invoices  domainBilling.InvoiceRepository
	customers domainBilling.CustomerRepository
	provider  domainBilling.PaymentProvider
	publisher shared.EventPublisher
	locker    domainBilling.InvoiceLocker
	metrics   ChargeMetrics
	logger    *zap.Logger
	config    BillingServiceConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewBillingService creates a new billing service
func NewBillingService(
	invoices domainBilling.InvoiceRepository,
	customers domainBilling.CustomerRepository,
	provider domainBilling.PaymentProvider,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	config BillingServiceConfig,
	opts ...BillingServiceOption,
) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Retry.Validate() != nil {
		config.Retry = DefaultRetryPolicy()
	}
	s := &BillingService{
		invoices:  invoices,
		customers: customers,
		provider:  provider,
		publisher: publisher,
		metrics:   nopMetrics{},
		logger:    logger.Named("billing"),
		config:    config,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Charge charges one invoice and returns it in its resulting status.
// It never returns an error: failures are recorded as status plus event.
func (s *BillingService) Charge(ctx context.Context, invoice domainBilling.Invoice) domainBilling.Invoice {
	result, _ := s.ChargeWithOutcome(ctx, invoice)
	return result
}

// ChargeWithOutcome is Charge with the detailed outcome, used by the batch dispatcher
func (s *BillingService) ChargeWithOutcome(ctx context.Context, invoice domainBilling.Invoice) (result domainBilling.Invoice, outcome ChargeOutcome) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "charge",
		telemetry.WithInvoice(invoice.ID, invoice.Status.String(), invoice.Currency().String()),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Charge panicked",
				zap.Int64("invoice_id", invoice.ID),
				zap.Any("panic", r),
			)
			result = invoice
			outcome = ChargeOutcome{Result: ResultAbandoned, Attempts: outcome.Attempts, Err: fmt.Errorf("charge invoice %d panicked: %v", invoice.ID, r)}
		}
		telemetry.SetAttributes(span,
			telemetry.SpanAttrResult, string(outcome.Result),
			telemetry.SpanAttrAttempts, outcome.Attempts,
		)
		telemetry.RecordError(span, outcome.Err)
		span.End()
		s.metrics.RecordCharge(ctx, string(outcome.Result), outcome.Attempts, time.Since(start))
	}()

	if invoice.IsPaid() {
		s.logger.Info("Invoice already paid, ignoring charge", zap.Int64("invoice_id", invoice.ID))
		s.publish(ctx, domainBilling.NewDuplicatePaymentEvent(invoice.ID))
		return invoice, ChargeOutcome{Result: ResultDuplicate}
	}

	if s.locker != nil {
		token, acquired, err := s.locker.TryLock(ctx, invoice.ID, s.config.LockTTL)
		switch {
		case err != nil:
			s.logger.Warn("Invoice lock unavailable, relying on conditional update",
				zap.Int64("invoice_id", invoice.ID),
				zap.Error(err),
			)
		case !acquired:
			s.logger.Info("Invoice is being charged elsewhere, skipping", zap.Int64("invoice_id", invoice.ID))
			return invoice, ChargeOutcome{Result: ResultSkipped}
		default:
			defer s.unlock(ctx, invoice.ID, token)
		}
	}

	customer, err := s.customers.FetchByID(ctx, invoice.CustomerID)
	if err != nil {
		if errors.Is(err, domainBilling.ErrCustomerNotFound) {
			return s.customerNotFound(ctx, invoice, 0)
		}
		// no invoice can match a currency that is not a currency
		if errors.Is(err, domainBilling.ErrInvalidCustomer) {
			s.logger.Error("Customer record is invalid",
				zap.Int64("invoice_id", invoice.ID),
				zap.Int64("customer_id", invoice.CustomerID),
				zap.Error(err),
			)
			return s.currencyMismatch(ctx, invoice, 0)
		}
		s.logger.Error("Customer lookup failed, leaving invoice for the next run",
			zap.Int64("invoice_id", invoice.ID),
			zap.Int64("customer_id", invoice.CustomerID),
			zap.Error(err),
		)
		return invoice, ChargeOutcome{Result: ResultAbandoned, Err: fmt.Errorf("fetch customer %d: %w", invoice.CustomerID, err)}
	}

	if !customer.CanPay(invoice) {
		return s.currencyMismatch(ctx, invoice, 0)
	}

	return s.chargeWithRetry(ctx, invoice)
}

func (s *BillingService) chargeWithRetry(ctx context.Context, invoice domainBilling.Invoice) (domainBilling.Invoice, ChargeOutcome) {
	policy := s.config.Retry
	schedule := policy.newBackOff()

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res := s.provider.Charge(ctx, invoice)

		switch {
		case res.Status == domainBilling.ChargeAccepted:
			return s.settle(ctx, invoice, domainBilling.InvoiceStatusPaid,
				domainBilling.NewSuccessfulPaymentEvent(invoice.ID, invoice.Amount), ResultPaid, attempt)
		case res.Status == domainBilling.ChargeDeclined:
			return s.settle(ctx, invoice, domainBilling.InvoiceStatusError,
				domainBilling.NewFailedPaymentEvent(invoice.ID, invoice.Amount), ResultDeclined, attempt)
		case res.Failure == domainBilling.FailureCustomerNotFound:
			return s.customerNotFound(ctx, invoice, attempt)
		case res.Failure == domainBilling.FailureCurrencyMismatch:
			return s.currencyMismatch(ctx, invoice, attempt)
		}

		s.logger.Warn("Payment attempt failed",
			zap.Int64("invoice_id", invoice.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(res.Err),
		)
		if attempt == policy.MaxAttempts {
			break
		}
		if err := s.sleep(ctx, schedule.NextBackOff()); err != nil {
			s.logger.Warn("Charge abandoned while waiting to retry",
				zap.Int64("invoice_id", invoice.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return invoice, ChargeOutcome{Result: ResultAbandoned, Attempts: attempt, Err: err}
		}
	}

	return s.settle(ctx, invoice, domainBilling.InvoiceStatusError,
		domainBilling.NewNetworkErrorEvent(invoice.ID), ResultNetworkError, policy.MaxAttempts)
}

func (s *BillingService) customerNotFound(ctx context.Context, invoice domainBilling.Invoice, attempts int) (domainBilling.Invoice, ChargeOutcome) {
	return s.settle(ctx, invoice, domainBilling.InvoiceStatusError,
		domainBilling.NewCustomerNotFoundEvent(invoice.ID, invoice.CustomerID), ResultCustomerNotFound, attempts)
}

func (s *BillingService) currencyMismatch(ctx context.Context, invoice domainBilling.Invoice, attempts int) (domainBilling.Invoice, ChargeOutcome) {
	return s.settle(ctx, invoice, domainBilling.InvoiceStatusError,
		domainBilling.NewCurrencyMismatchEvent(invoice.ID, invoice.CustomerID, invoice.Currency()), ResultCurrencyMismatch, attempts)
}

// settle stores the new status conditionally and publishes the terminal event.
// A decided outcome is stored even if ctx was cancelled meanwhile. When another
// process changed the status first, its write and its event stand: the stored
// invoice is returned and nothing is published.
func (s *BillingService) settle(
	ctx context.Context,
	invoice domainBilling.Invoice,
	status domainBilling.InvoiceStatus,
	event shared.DomainEvent,
	result Result,
	attempts int,
) (domainBilling.Invoice, ChargeOutcome) {
	ctx = context.WithoutCancel(ctx)
	updated := invoice.WithStatus(status)
	outcome := ChargeOutcome{Result: result, Attempts: attempts}

	saved, err := s.invoices.UpdateStatus(ctx, updated, invoice.Status)
	switch {
	case errors.Is(err, domainBilling.ErrConcurrentUpdate):
		outcome.Err = fmt.Errorf("store invoice %d as %s: %w", invoice.ID, status, err)
		return s.lostUpdate(ctx, invoice, status, outcome), outcome
	case err != nil:
		outcome.Err = fmt.Errorf("store invoice %d as %s: %w", invoice.ID, status, err)
		s.logger.Error("Failed to store charge outcome",
			zap.Int64("invoice_id", invoice.ID),
			zap.String("status", status.String()),
			zap.String("result", string(result)),
			zap.Error(err),
		)
	default:
		updated = saved
	}

	s.logger.Info("Invoice charge finished",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("result", string(result)),
		zap.String("status", updated.Status.String()),
		zap.Int("attempts", attempts),
	)
	s.publish(ctx, event)
	return updated, outcome
}

// lostUpdate returns the invoice as the winning writer left it
func (s *BillingService) lostUpdate(ctx context.Context, invoice domainBilling.Invoice, status domainBilling.InvoiceStatus, outcome ChargeOutcome) domainBilling.Invoice {
	stored, err := s.invoices.FetchByID(ctx, invoice.ID)
	if err != nil {
		s.logger.Error("Invoice changed concurrently and could not be reloaded",
			zap.Int64("invoice_id", invoice.ID),
			zap.String("result", string(outcome.Result)),
			zap.Error(err),
		)
		return invoice
	}
	s.logger.Error("Invoice changed concurrently, keeping the stored status",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("result", string(outcome.Result)),
		zap.String("wanted_status", status.String()),
		zap.String("stored_status", stored.Status.String()),
		zap.Int("attempts", outcome.Attempts),
	)
	return stored
}

func (s *BillingService) publish(ctx context.Context, event shared.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish billing event",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	}
}

func (s *BillingService) unlock(ctx context.Context, invoiceID int64, token string) {
	if err := s.locker.Unlock(context.WithoutCancel(ctx), invoiceID, token); err != nil {
		s.logger.Warn("Failed to release invoice lock", zap.Int64("invoice_id", invoiceID), zap.Error(err))
	}
}
