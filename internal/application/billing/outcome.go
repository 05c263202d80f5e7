package billing

import (
	"context"
	"time"
)

// Result is the terminal classification of a single charge
type Result string

const (
	ResultPaid             Result = "paid"
	ResultDeclined         Result = "declined"
	ResultDuplicate        Result = "duplicate"
	ResultCustomerNotFound Result = "customer_not_found"
	ResultCurrencyMismatch Result = "currency_mismatch"
	ResultNetworkError     Result = "network_error"
	// ResultSkipped means another process holds the invoice lock
	ResultSkipped Result = "skipped"
	// ResultAbandoned means no decision was reached; the invoice is left as it was
	ResultAbandoned Result = "abandoned"
)

// ChargeOutcome describes how a charge ended
type ChargeOutcome struct {
	Result   Result
	Attempts int
	// Err is set when the outcome could not be stored or no decision was reached
	Err error
}

// ChargeMetrics records billing activity. Implemented by telemetry.BillingMetrics.
type ChargeMetrics interface {
	RecordCharge(ctx context.Context, result string, attempts int, duration time.Duration)
	RecordBatch(ctx context.Context, invoices int, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordCharge(context.Context, string, int, time.Duration) {}
func (nopMetrics) RecordBatch(context.Context, int, time.Duration)          {}
