package locations

import (
	"github.com/gin-gonic/gin"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/models"
)

// Handler exposes the location ingest endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a location handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the ingest route on the drivers group.
func (h *Handler) RegisterRoutes(drivers *gin.RouterGroup) {
	drivers.POST("/:id/location", h.updateDriverLocation)
}

// updateDriverLocation handles POST /api/v1/drivers/:id/location
func (h *Handler) updateDriverLocation(c *gin.Context) {
	driverID, ok := common.ParseUUIDParam(c, "id", "driver id")
	if !ok {
		return
	}

	var req models.DriverLocationUpdate
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.service.RecordPing(c.Request.Context(), driverID, &req); err != nil {
		common.HandleServiceError(c, err, "failed to record location")
		return
	}

	common.SuccessResponse(c, gin.H{"status": "accepted"})
}
