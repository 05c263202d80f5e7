package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainBilling "github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Charger charges a single invoice. Implemented by BillingService.
type Charger interface {
	ChargeWithOutcome(ctx context.Context, invoice domainBilling.Invoice) (domainBilling.Invoice, ChargeOutcome)
}

// PendingInvoiceFetcher lists invoices by status
type PendingInvoiceFetcher interface {
	FetchByStatus(ctx context.Context, status domainBilling.InvoiceStatus) ([]domainBilling.Invoice, error)
}

// BatchReporter receives the report of every finished batch
type BatchReporter interface {
	ReportBatch(ctx context.Context, report BatchReport) error
}

// InvoiceFailure is a per-invoice failure that did not stop the batch
type InvoiceFailure struct {
	InvoiceID int64  `json:"invoice_id"`
	Result    Result `json:"result"`
	Error     string `json:"error"`
}

// BatchReport summarises one batch run
type BatchReport struct {
	BatchID    uuid.UUID        `json:"batch_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Total      int              `json:"total"`
	Outcomes   map[Result]int   `json:"outcomes"`
	Failures   []InvoiceFailure `json:"failures,omitempty"`
	// FetchError is set when the pending invoices could not be listed
	FetchError string `json:"fetch_error,omitempty"`
}

// Count returns how many invoices ended with the given result
func (r BatchReport) Count(result Result) int {
	return r.Outcomes[result]
}

// Duration returns the wall time of the batch
func (r BatchReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// BatchDispatcherConfig contains configuration for batch runs
type BatchDispatcherConfig struct {
	// MaxConcurrency caps concurrent charges. Zero means one goroutine per invoice.
	MaxConcurrency int
}

// BatchDispatcher charges all pending invoices concurrently
type BatchDispatcher struct {
	invoices  PendingInvoiceFetcher
	charger   Charger
	reporters []BatchReporter
	metrics   ChargeMetrics
	logger    *zap.Logger
	config    BatchDispatcherConfig

	mu      sync.RWMutex
	running int
	lastRun *BatchReport
}

// BatchDispatcherOption configures optional collaborators
type BatchDispatcherOption func(*BatchDispatcher)

// WithBatchReporter adds a reporter that receives every finished batch
func WithBatchReporter(reporter BatchReporter) BatchDispatcherOption {
	return func(d *BatchDispatcher) {
		if reporter != nil {
			d.reporters = append(d.reporters, reporter)
		}
	}
}

// WithBatchMetrics records batch sizes and durations
func WithBatchMetrics(metrics ChargeMetrics) BatchDispatcherOption {
	return func(d *BatchDispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// NewBatchDispatcher creates a new batch dispatcher
func NewBatchDispatcher(
	invoices PendingInvoiceFetcher,
	charger Charger,
	logger *zap.Logger,
	config BatchDispatcherConfig,
	opts ...BatchDispatcherOption,
) *BatchDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxConcurrency < 0 {
		config.MaxConcurrency = 0
	}
	d := &BatchDispatcher{
		invoices: invoices,
		charger:  charger,
		metrics:  nopMetrics{},
		logger:   logger.Named("batch"),
		config:   config,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunPendingBatch fetches all pending invoices and charges them concurrently,
// waiting until every charge has reached a terminal outcome. Overlapping calls
// run independently.
func (d *BatchDispatcher) RunPendingBatch(ctx context.Context) BatchReport {
	report := BatchReport{
		BatchID:   uuid.New(),
		StartedAt: time.Now(),
		Outcomes:  make(map[Result]int),
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "run_pending_batch",
		telemetry.WithAttribute(telemetry.SpanAttrBatchID, report.BatchID.String()),
	)
	defer span.End()

	d.mu.Lock()
	d.running++
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running--
		d.mu.Unlock()
	}()

	log := d.logger.With(zap.String("batch_id", report.BatchID.String()))

	pending, err := d.invoices.FetchByStatus(ctx, domainBilling.InvoiceStatusPending)
	if err != nil {
		log.Error("Failed to fetch pending invoices", zap.Error(err))
		telemetry.RecordError(span, err)
		report.FetchError = err.Error()
		return d.finish(ctx, log, report)
	}
	report.Total = len(pending)
	telemetry.SetAttribute(span, telemetry.SpanAttrBatchTotal, report.Total)
	log.Info("Starting billing batch", zap.Int("pending", report.Total))

	var (
		g       errgroup.Group
		reportM sync.Mutex
	)
	if d.config.MaxConcurrency > 0 {
		g.SetLimit(d.config.MaxConcurrency)
	}

	for _, invoice := range pending {
		g.Go(func() error {
			outcome := d.chargeOne(ctx, invoice)

			reportM.Lock()
			defer reportM.Unlock()
			report.Outcomes[outcome.Result]++
			if outcome.Err != nil {
				report.Failures = append(report.Failures, InvoiceFailure{
					InvoiceID: invoice.ID,
					Result:    outcome.Result,
					Error:     outcome.Err.Error(),
				})
			}
			// Never fail the group: siblings must keep running.
			return nil
		})
	}
	_ = g.Wait()

	return d.finish(ctx, log, report)
}

func (d *BatchDispatcher) chargeOne(ctx context.Context, invoice domainBilling.Invoice) (outcome ChargeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = ChargeOutcome{Result: ResultAbandoned, Err: fmt.Errorf("charge invoice %d panicked: %v", invoice.ID, r)}
		}
		if outcome.Err != nil {
			d.logger.Error("Invoice charge failed",
				zap.Int64("invoice_id", invoice.ID),
				zap.String("result", string(outcome.Result)),
				zap.Error(outcome.Err),
			)
		}
	}()

	labels := telemetry.BillingLabels(telemetry.OperationCharge, invoice.Amount.Currency().String())
	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
		_, outcome = d.charger.ChargeWithOutcome(ctx, invoice)
	})
	return outcome
}

func (d *BatchDispatcher) finish(ctx context.Context, log *zap.Logger, report BatchReport) BatchReport {
	report.FinishedAt = time.Now()

	fields := []zap.Field{
		zap.Int("total", report.Total),
		zap.Int("failures", len(report.Failures)),
		zap.Duration("duration", report.Duration()),
	}
	for result, n := range report.Outcomes {
		fields = append(fields, zap.Int(string(result), n))
	}
	log.Info("Billing batch finished", fields...)

	d.metrics.RecordBatch(ctx, report.Total, report.Duration())

	// Reporting must not be cut short by a cancelled batch context.
	reportCtx := context.WithoutCancel(ctx)
	for _, reporter := range d.reporters {
		if err := reporter.ReportBatch(reportCtx, report); err != nil {
			log.Warn("Failed to report billing batch", zap.Error(err))
		}
	}

	d.mu.Lock()
	last := report
	d.lastRun = &last
	d.mu.Unlock()

	return report
}

// Running returns the number of batches currently in flight
func (d *BatchDispatcher) Running() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// LastReport returns the report of the most recently finished batch
func (d *BatchDispatcher) LastReport() (BatchReport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastRun == nil {
		return BatchReport{}, false
	}
	return *d.lastRun, true
}
