package drivers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/models"
)

// Handler exposes driver profile and availability endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a driver handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts driver routes on the drivers group.
func (h *Handler) RegisterRoutes(drivers *gin.RouterGroup) {
	drivers.GET("/:id", h.getDriver)
	drivers.PUT("/:id/availability", h.updateAvailability)
	drivers.GET("/:id/earnings", h.getEarnings)
}

// getDriver handles GET /api/v1/drivers/:id
func (h *Handler) getDriver(c *gin.Context) {
	driverID, ok := common.ParseUUIDParam(c, "id", "driver id")
	if !ok {
		return
	}

	driver, err := h.service.GetDriver(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to get driver") {
		return
	}

	common.SuccessResponse(c, driver)
}

// updateAvailability handles PUT /api/v1/drivers/:id/availability
func (h *Handler) updateAvailability(c *gin.Context) {
	driverID, ok := common.ParseUUIDParam(c, "id", "driver id")
	if !ok {
		return
	}

	var req models.UpdateAvailabilityRequest
	if !common.BindJSON(c, &req) {
		return
	}

	driver, err := h.service.UpdateAvailability(c.Request.Context(), driverID, req.Status)
	if common.HandleServiceError(c, err, "failed to update availability") {
		return
	}

	common.SuccessResponse(c, driver)
}

type earningsQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02"`
	To   time.Time `form:"to" time_format:"2006-01-02"`
}

// getEarnings handles GET /api/v1/drivers/:id/earnings
func (h *Handler) getEarnings(c *gin.Context) {
	driverID, ok := common.ParseUUIDParam(c, "id", "driver id")
	if !ok {
		return
	}

	var q earningsQuery
	if !common.BindQuery(c, &q) {
		return
	}

	summary, err := h.service.GetEarnings(c.Request.Context(), driverID, q.From, q.To)
	if common.HandleServiceError(c, err, "failed to summarize earnings") {
		return
	}

	common.SuccessResponse(c, summary)
}
