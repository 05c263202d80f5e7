package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// InvoiceStatsProvider reports how many invoices sit in each status.
type InvoiceStatsProvider interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// BillingMetricsConfig configures BillingMetrics.
type BillingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
	// Stats feeds the invoice gauge. Optional.
	Stats InvoiceStatsProvider
}

// BillingMetrics records charge and batch activity.
//
// Charge results, retry attempts and batch sizes are pushed by the billing
// service; the invoices-by-status gauge is pulled periodically from Stats.
type BillingMetrics struct {
	chargesTotal    *Counter
	chargeAttempts  *Counter
	chargeDuration  *Histogram
	batchesTotal    *Counter
	batchInvoices   *Histogram
	batchDuration   *Histogram
	invoicesByState *Gauge

	stats  InvoiceStatsProvider
	logger *zap.Logger

	stopChan    chan struct{}
	collectOnce sync.Once
	stopOnce    sync.Once
}

// NewBillingMetrics creates the billing instruments on cfg.Meter.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{
		stats:    cfg.Stats,
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	var err error
	if bm.chargesTotal, err = NewCounter(cfg.Meter,
		"billing_charges_total",
		"Charges by terminal result",
		"{charges}",
	); err != nil {
		return nil, err
	}
	if bm.chargeAttempts, err = NewCounter(cfg.Meter,
		"billing_charge_attempts_total",
		"Payment provider calls made by charges",
		"{attempts}",
	); err != nil {
		return nil, err
	}
	if bm.chargeDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "billing_charge_duration_seconds",
		Description: "Time to settle one invoice, retries included",
		Unit:        "s",
		Boundaries:  ChargeDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.batchesTotal, err = NewCounter(cfg.Meter,
		"billing_batches_total",
		"Completed pending-invoice runs",
		"{batches}",
	); err != nil {
		return nil, err
	}
	if bm.batchInvoices, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "billing_batch_invoices",
		Description: "Invoices dispatched per run",
		Unit:        "{invoices}",
		Boundaries:  BatchSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.batchDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "billing_batch_duration_seconds",
		Description: "Wall time of a pending-invoice run",
		Unit:        "s",
		Boundaries:  BatchDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.invoicesByState, err = NewGauge(cfg.Meter,
		"billing_invoices",
		"Invoices per status",
		"{invoices}",
	); err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordCharge records one settled charge.
func (bm *BillingMetrics) RecordCharge(ctx context.Context, result string, attempts int, duration time.Duration) {
	bm.chargesTotal.Inc(ctx, AttrResult.String(result))
	if attempts > 0 {
		bm.chargeAttempts.Add(ctx, int64(attempts), AttrResult.String(result))
	}
	bm.chargeDuration.RecordDuration(ctx, duration, AttrResult.String(result))
}

// RecordBatch records one finished run.
func (bm *BillingMetrics) RecordBatch(ctx context.Context, invoices int, duration time.Duration) {
	bm.batchesTotal.Inc(ctx)
	bm.batchInvoices.Record(ctx, float64(invoices))
	bm.batchDuration.RecordDuration(ctx, duration)
}

// RecordInvoiceCount sets the gauge for one status.
func (bm *BillingMetrics) RecordInvoiceCount(ctx context.Context, status string, count int64) {
	bm.invoicesByState.Record(ctx, count, AttrInvoiceStatus.String(status))
}

// StartPeriodicCollection polls Stats every interval (default 1 minute)
// until ctx is done or Stop is called. It does not block.
func (bm *BillingMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BillingMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectInvoiceCounts(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic billing metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			bm.collectInvoiceCounts(ctx)
		}
	}
}

func (bm *BillingMetrics) collectInvoiceCounts(ctx context.Context) {
	if bm.stats == nil {
		return
	}

	counts, err := bm.stats.CountByStatus(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count invoices for metrics", zap.Error(err))
		return
	}
	for status, count := range counts {
		bm.RecordInvoiceCount(ctx, status, count)
	}
}

// Stop stops the periodic collection.
func (bm *BillingMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
