package notifications

import (
	"github.com/gin-gonic/gin"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/pagination"
)

// Handler exposes notification history and device registration endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts notification routes on the users group.
func (h *Handler) RegisterRoutes(users *gin.RouterGroup) {
	users.GET("/:id/notifications", h.listNotifications)
	users.POST("/:id/devices", h.registerDevice)
}

// listNotifications handles GET /api/v1/users/:id/notifications
func (h *Handler) listNotifications(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user id")
	if !ok {
		return
	}

	params := pagination.ParseParams(c)

	items, total, err := h.service.ListForUser(c.Request.Context(), userID, params.Limit, params.Offset())
	if common.HandleServiceError(c, err, "failed to list notifications") {
		return
	}

	common.SuccessResponseWithMeta(c, items, pagination.BuildMeta(params, total))
}

type registerDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"omitempty,oneof=android ios"`
}

// registerDevice handles POST /api/v1/users/:id/devices
func (h *Handler) registerDevice(c *gin.Context) {
	userID, ok := common.ParseUUIDParam(c, "id", "user id")
	if !ok {
		return
	}

	var req registerDeviceRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if req.Platform == "" {
		req.Platform = "android"
	}

	err := h.service.RegisterDevice(c.Request.Context(), userID, req.Token, req.Platform)
	if common.HandleServiceError(c, err, "failed to register device") {
		return
	}

	common.SuccessResponse(c, gin.H{"status": "registered"})
}
