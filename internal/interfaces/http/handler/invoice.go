package handler

import (
	"context"
	"encoding/json"

	appbilling "github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/infrastructure/persistence"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvoiceReader lists and loads invoices
type InvoiceReader interface {
	FetchAll(ctx context.Context) ([]billing.Invoice, error)
	FetchByStatus(ctx context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error)
	Fetch(ctx context.Context, id int64) (billing.Invoice, error)
}

// InvoiceCharger charges a single invoice
type InvoiceCharger interface {
	ChargeWithOutcome(ctx context.Context, invoice billing.Invoice) (billing.Invoice, appbilling.ChargeOutcome)
}

// EventLog reads stored billing events
type EventLog interface {
	FindByAggregate(ctx context.Context, aggregateType string, aggregateID int64) ([]persistence.EventRecord, error)
}

// InvoiceHandler serves /api/v1/invoices
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceReader
	charger  InvoiceCharger
	events   EventLog
}

// NewInvoiceHandler creates an InvoiceHandler. events may be nil when the
// event log is disabled.
func NewInvoiceHandler(invoices InvoiceReader, charger InvoiceCharger, events EventLog, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler: newBaseHandler(logger),
		invoices:    invoices,
		charger:     charger,
		events:      events,
	}
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Description  List every invoice, optionally filtered by status
// @Tags         invoices
// @Produce      json
// @Param        status query string false "Invoice status" Enums(PENDING, PAID, ERROR)
// @Success      200 {object} dto.Response{data=[]dto.InvoiceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var req dto.ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "invalid status filter")
		return
	}

	ctx := c.Request.Context()
	var (
		invoices []billing.Invoice
		err      error
	)
	if req.Status == "" {
		invoices, err = h.invoices.FetchAll(ctx)
	} else {
		status, parseErr := billing.ParseInvoiceStatus(req.Status)
		if parseErr != nil {
			h.HandleError(c, parseErr)
			return
		}
		invoices, err = h.invoices.FetchByStatus(ctx, status)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToInvoiceResponses(invoices))
}

// Get godoc
// @ID           getInvoiceById
// @Summary      Get invoice by ID
// @Description  Retrieve a single invoice
// @Tags         invoices
// @Produce      json
// @Param        id path int true "Invoice ID"
// @Success      200 {object} dto.Response{data=dto.InvoiceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	invoice, err := h.invoices.Fetch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToInvoiceResponse(invoice))
}

// Charge godoc
// @ID           chargeInvoice
// @Summary      Charge an invoice
// @Description  Charge one invoice now. The outcome is reported in the body; declines and skips are not HTTP errors.
// @Tags         invoices
// @Produce      json
// @Param        id path int true "Invoice ID"
// @Success      200 {object} dto.Response{data=dto.ChargeResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id}/charge [post]
func (h *InvoiceHandler) Charge(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	invoice, err := h.invoices.Fetch(ctx, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, outcome := h.charger.ChargeWithOutcome(ctx, invoice)
	h.Success(c, dto.ToChargeResponse(result, outcome))
}

// Events godoc
// @ID           listInvoiceEvents
// @Summary      List invoice events
// @Description  Billing events stored for an invoice, oldest first. Empty when the event log is disabled.
// @Tags         invoices
// @Produce      json
// @Param        id path int true "Invoice ID"
// @Success      200 {object} dto.Response{data=[]dto.EventResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /invoices/{id}/events [get]
func (h *InvoiceHandler) Events(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	if h.events == nil {
		h.Success(c, []dto.EventResponse{})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.invoices.Fetch(ctx, id); err != nil {
		h.HandleError(c, err)
		return
	}
	records, err := h.events.FindByAggregate(ctx, billing.AggregateTypeInvoice, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]dto.EventResponse, 0, len(records))
	for _, r := range records {
		var payload any
		if len(r.Payload) > 0 && json.Unmarshal(r.Payload, &payload) != nil {
			payload = string(r.Payload)
		}
		out = append(out, dto.EventResponse{
			ID:         r.ID,
			EventType:  r.EventType,
			OccurredAt: r.OccurredAt,
			Payload:    payload,
		})
	}
	h.Success(c, out)
}
