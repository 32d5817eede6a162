package pricing

import (
	"github.com/gin-gonic/gin"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/models"
)

// Handler exposes the fare estimate endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a pricing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the estimate route on the fares group.
func (h *Handler) RegisterRoutes(fares *gin.RouterGroup) {
	fares.POST("/estimate", h.estimateFare)
}

// estimateFare handles POST /api/v1/fares/estimate
func (h *Handler) estimateFare(c *gin.Context) {
	var req models.EstimateFareRequest
	if !common.BindJSON(c, &req) {
		return
	}

	quote, err := h.service.EstimateFare(c.Request.Context(), req.Pickup, req.Dropoff, req.RideType)
	if common.HandleServiceError(c, err, "failed to estimate fare") {
		return
	}

	common.SuccessResponse(c, models.FareEstimate{
		EstimatedDistance: quote.DistanceKm,
		EstimatedDuration: quote.DurationMin,
		EstimatedFare:     quote.EstimatedFare,
		SurgeMultiplier:   quote.SurgeMultiplier,
		Currency:          quote.Rates.Currency,
	})
}
