package dto

import (
	"time"

	appbilling "github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/google/uuid"
)

// InvoiceResponse is an invoice as returned by the API
type InvoiceResponse struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
}

// ToInvoiceResponse converts a domain invoice
func ToInvoiceResponse(inv billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:         inv.ID,
		CustomerID: inv.CustomerID,
		Amount:     inv.Amount.Amount().StringFixed(2),
		Currency:   inv.Amount.Currency().String(),
		Status:     inv.Status.String(),
	}
}

// ToInvoiceResponses converts a slice, never returning nil
func ToInvoiceResponses(invoices []billing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, ToInvoiceResponse(inv))
	}
	return out
}

// CustomerResponse is a customer as returned by the API
type CustomerResponse struct {
	ID       int64  `json:"id"`
	Currency string `json:"currency"`
}

// ToCustomerResponse converts a domain customer
func ToCustomerResponse(c billing.Customer) CustomerResponse {
	return CustomerResponse{ID: c.ID, Currency: c.Currency.String()}
}

// ToCustomerResponses converts customers, never returning nil
func ToCustomerResponses(customers []billing.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, ToCustomerResponse(c))
	}
	return out
}

// ListInvoicesRequest filters the invoice list
type ListInvoicesRequest struct {
	Status string `form:"status" binding:"omitempty,max=16"`
}

// IDRequest binds a numeric :id path parameter
type IDRequest struct {
	ID int64 `uri:"id" binding:"required,gt=0"`
}

// ChargeResponse reports a single-invoice charge
type ChargeResponse struct {
	Invoice  InvoiceResponse `json:"invoice"`
	Result   string          `json:"result"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error,omitempty"`
}

// ToChargeResponse converts a charge result
func ToChargeResponse(inv billing.Invoice, outcome appbilling.ChargeOutcome) ChargeResponse {
	resp := ChargeResponse{
		Invoice:  ToInvoiceResponse(inv),
		Result:   string(outcome.Result),
		Attempts: outcome.Attempts,
	}
	if outcome.Err != nil {
		resp.Error = outcome.Err.Error()
	}
	return resp
}

// EventResponse is one stored billing event
type EventResponse struct {
	ID         uuid.UUID `json:"id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// BatchReportResponse summarizes a pending-invoice run
type BatchReportResponse struct {
	BatchID    uuid.UUID                   `json:"batch_id"`
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
	DurationMS int64                       `json:"duration_ms"`
	Total      int                         `json:"total"`
	Outcomes   map[string]int              `json:"outcomes"`
	Failures   []appbilling.InvoiceFailure `json:"failures,omitempty"`
	FetchError string                      `json:"fetch_error,omitempty"`
}

// ToBatchReportResponse converts a batch report
func ToBatchReportResponse(r appbilling.BatchReport) *BatchReportResponse {
	outcomes := make(map[string]int, len(r.Outcomes))
	for result, n := range r.Outcomes {
		outcomes[string(result)] = n
	}
	return &BatchReportResponse{
		BatchID:    r.BatchID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
		Total:      r.Total,
		Outcomes:   outcomes,
		Failures:   r.Failures,
		FetchError: r.FetchError,
	}
}

// RunResponse acknowledges an on-demand billing run
type RunResponse struct {
	Job string `json:"job"`
}

// SchedulerStatusResponse describes the scheduler and the last finished batch
type SchedulerStatusResponse struct {
	State          string               `json:"state"`
	Jobs           []string             `json:"jobs"`
	NextRunAt      *time.Time           `json:"next_run_at,omitempty"`
	LastFireAt     *time.Time           `json:"last_fire_at,omitempty"`
	RunningBatches int                  `json:"running_batches"`
	LastBatch      *BatchReportResponse `json:"last_batch,omitempty"`
}

// TokenRequest exchanges the admin secret for a token
type TokenRequest struct {
	Secret  string `json:"secret" binding:"required"`
	Subject string `json:"subject" binding:"omitempty,max=64"`
}
