package payments

import (
	"github.com/gin-gonic/gin"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/models"
)

// Handler exposes payment settlement endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts payment routes on the payments group.
func (h *Handler) RegisterRoutes(payments *gin.RouterGroup) {
	payments.POST("", h.processPayment)
	payments.GET("/:id", h.getPayment)
	payments.POST("/:id/retry", h.retryPayment)
	payments.POST("/:id/refund", h.refundPayment)
}

// RegisterTripRoutes mounts the receipt route on the trips group.
func (h *Handler) RegisterTripRoutes(trips *gin.RouterGroup) {
	trips.GET("/:id/receipt", h.getReceipt)
}

// processPayment handles POST /api/v1/payments
func (h *Handler) processPayment(c *gin.Context) {
	var req models.ProcessPaymentRequest
	if !common.BindJSON(c, &req) {
		return
	}

	payment, err := h.service.ProcessPayment(c.Request.Context(), req)
	if common.HandleServiceError(c, err, "failed to process payment") {
		return
	}

	common.SuccessResponse(c, payment)
}

// getPayment handles GET /api/v1/payments/:id
func (h *Handler) getPayment(c *gin.Context) {
	paymentID, ok := common.ParseUUIDParam(c, "id", "payment id")
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(c.Request.Context(), paymentID)
	if common.HandleServiceError(c, err, "failed to get payment") {
		return
	}

	common.SuccessResponse(c, payment)
}

// retryPayment handles POST /api/v1/payments/:id/retry
func (h *Handler) retryPayment(c *gin.Context) {
	paymentID, ok := common.ParseUUIDParam(c, "id", "payment id")
	if !ok {
		return
	}

	payment, err := h.service.RetryPayment(c.Request.Context(), paymentID)
	if common.HandleServiceError(c, err, "failed to retry payment") {
		return
	}

	common.SuccessResponse(c, payment)
}

// refundPayment handles POST /api/v1/payments/:id/refund
func (h *Handler) refundPayment(c *gin.Context) {
	paymentID, ok := common.ParseUUIDParam(c, "id", "payment id")
	if !ok {
		return
	}

	var req models.RefundPaymentRequest
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.service.Refund(c.Request.Context(), paymentID, req)
	if common.HandleServiceError(c, err, "failed to refund payment") {
		return
	}

	common.SuccessResponse(c, result)
}

// getReceipt handles GET /api/v1/trips/:id/receipt
func (h *Handler) getReceipt(c *gin.Context) {
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	receipt, err := h.service.GetReceipt(c.Request.Context(), tripID)
	if common.HandleServiceError(c, err, "failed to get receipt") {
		return
	}

	common.SuccessResponse(c, receipt)
}
