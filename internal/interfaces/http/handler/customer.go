package handler

import (
	"context"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CustomerReader lists and loads customers
type CustomerReader interface {
	FetchAll(ctx context.Context) ([]billing.Customer, error)
	Fetch(ctx context.Context, id int64) (billing.Customer, error)
}

// CustomerHandler serves /api/v1/customers
type CustomerHandler struct {
	BaseHandler
	customers CustomerReader
}

// NewCustomerHandler creates a CustomerHandler
func NewCustomerHandler(customers CustomerReader, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{BaseHandler: newBaseHandler(logger), customers: customers}
}

// List godoc
// @ID           listCustomers
// @Summary      List customers
// @Tags         customers
// @Produce      json
// @Success      200 {object} dto.Response{data=[]dto.CustomerResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	customers, err := h.customers.FetchAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCustomerResponses(customers))
}

// Get godoc
// @ID           getCustomerById
// @Summary      Get customer by ID
// @Tags         customers
// @Produce      json
// @Param        id path int true "Customer ID"
// @Success      200 {object} dto.Response{data=dto.CustomerResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /customers/{id} [get]
func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	customer, err := h.customers.Fetch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCustomerResponse(customer))
}
