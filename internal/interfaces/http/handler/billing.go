package handler

import (
	"context"

	appbilling "github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/infrastructure/scheduler"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Scheduler controls when billing batches run
type Scheduler interface {
	StartScheduled(ctx context.Context) error
	StartNow(ctx context.Context) (string, error)
	Stop(ctx context.Context) error
	Status() scheduler.Status
}

// BatchMonitor reports on batches
type BatchMonitor interface {
	Running() int
	LastReport() (appbilling.BatchReport, bool)
}

// BillingHandler serves /api/v1/billing
type BillingHandler struct {
	BaseHandler
	scheduler Scheduler
	batches   BatchMonitor
}

// NewBillingHandler creates a BillingHandler
func NewBillingHandler(s Scheduler, batches BatchMonitor, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{BaseHandler: newBaseHandler(logger), scheduler: s, batches: batches}
}

// Run godoc
// @ID           runBilling
// @Summary      Run a billing batch now
// @Description  Registers a one-shot job that charges every pending invoice in the background
// @Tags         billing
// @Produce      json
// @Success      202 {object} dto.Response{data=dto.RunResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/run [post]
func (h *BillingHandler) Run(c *gin.Context) {
	job, err := h.scheduler.StartNow(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.RunResponse{Job: job})
}

// Status godoc
// @ID           getBillingStatus
// @Summary      Billing scheduler status
// @Description  Scheduler state, registered jobs and the last finished batch
// @Tags         billing
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.SchedulerStatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/status [get]
func (h *BillingHandler) Status(c *gin.Context) {
	h.Success(c, h.status())
}

// Schedule godoc
// @ID           scheduleBilling
// @Summary      Start monthly billing
// @Description  Registers the monthly job and fires one run. Calling it again is a no-op.
// @Tags         billing
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.SchedulerStatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/schedule [post]
func (h *BillingHandler) Schedule(c *gin.Context) {
	if err := h.scheduler.StartScheduled(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.status())
}

// Unschedule godoc
// @ID           unscheduleBilling
// @Summary      Stop monthly billing
// @Description  Removes the monthly job and waits for in-flight batches for as long as the request allows
// @Tags         billing
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.SchedulerStatusResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/schedule [delete]
func (h *BillingHandler) Unschedule(c *gin.Context) {
	if err := h.scheduler.Stop(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.status())
}

func (h *BillingHandler) status() dto.SchedulerStatusResponse {
	st := h.scheduler.Status()
	resp := dto.SchedulerStatusResponse{
		State:      st.State,
		Jobs:       st.Jobs,
		NextRunAt:  st.NextRunAt,
		LastFireAt: st.LastFireAt,
	}
	if resp.Jobs == nil {
		resp.Jobs = []string{}
	}
	if h.batches != nil {
		resp.RunningBatches = h.batches.Running()
		if report, ok := h.batches.LastReport(); ok {
			resp.LastBatch = dto.ToBatchReportResponse(report)
		}
	}
	return resp
}
