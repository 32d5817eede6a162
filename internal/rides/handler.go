package rides

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/models"
	"github.com/velocab/ridecore/pkg/pagination"
)

// Handler exposes the ride lifecycle endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a ride handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts rider-facing ride routes.
func (h *Handler) RegisterRoutes(rides *gin.RouterGroup) {
	rides.POST("", h.createRide)
	rides.GET("", h.listRides)
	rides.GET("/:id", h.getRide)
	rides.POST("/:id/cancel", h.cancelRide)
	rides.POST("/:id/rate", h.rateRide)
}

// RegisterDriverRoutes mounts the driver side of the lifecycle.
func (h *Handler) RegisterDriverRoutes(driverRides *gin.RouterGroup) {
	driverRides.POST("/:id/accept", h.acceptRide)
	driverRides.POST("/:id/arriving", h.markArriving)
	driverRides.POST("/:id/arrived", h.markArrived)
}

// RegisterTripRoutes mounts trip execution routes.
func (h *Handler) RegisterTripRoutes(trips *gin.RouterGroup) {
	trips.POST("/:id/start", h.startTrip)
	trips.POST("/:id/end", h.endTrip)
}

// createRide handles POST /api/v1/rides
func (h *Handler) createRide(c *gin.Context) {
	var req models.CreateRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.CreateRide(c.Request.Context(), req)
	if common.HandleServiceError(c, err, "failed to create ride") {
		return
	}

	common.CreatedResponse(c, ride)
}

type listRidesQuery struct {
	RiderID uuid.UUID `form:"rider_id" binding:"required"`
}

// listRides handles GET /api/v1/rides?rider_id=...
func (h *Handler) listRides(c *gin.Context) {
	var q listRidesQuery
	if !common.BindQuery(c, &q) {
		return
	}
	params := pagination.ParseParams(c)

	rides, total, err := h.service.ListRiderHistory(c.Request.Context(), q.RiderID, params.Limit, params.Offset())
	if common.HandleServiceError(c, err, "failed to list rides") {
		return
	}

	common.SuccessResponseWithMeta(c, rides, pagination.BuildMeta(params, total))
}

// getRide handles GET /api/v1/rides/:id
func (h *Handler) getRide(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride id")
	if !ok {
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), rideID)
	if common.HandleServiceError(c, err, "failed to get ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// cancelRide handles POST /api/v1/rides/:id/cancel
func (h *Handler) cancelRide(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride id")
	if !ok {
		return
	}

	var req models.CancelRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.CancelRide(c.Request.Context(), rideID, req)
	if common.HandleServiceError(c, err, "failed to cancel ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// rateRide handles POST /api/v1/rides/:id/rate
func (h *Handler) rateRide(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride id")
	if !ok {
		return
	}

	var req models.RideRatingRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.RateRide(c.Request.Context(), rideID, req)
	if common.HandleServiceError(c, err, "failed to rate ride") {
		return
	}

	common.SuccessResponse(c, ride)
}

// acceptRide handles POST /api/v1/driver/rides/:id/accept
func (h *Handler) acceptRide(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride id")
	if !ok {
		return
	}

	var req models.AcceptRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.AcceptRide(c.Request.Context(), rideID, req.DriverID)
	if common.HandleServiceError(c, err, "failed to accept ride") {
		return
	}

	common.SuccessResponse(c, resp)
}

type driverActionRequest struct {
	DriverID uuid.UUID `json:"driver_id" binding:"required"`
}

// markArriving handles POST /api/v1/driver/rides/:id/arriving
func (h *Handler) markArriving(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride id")
	if !ok {
		return
	}

	var req driverActionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.MarkArriving(c.Request.Context(), rideID, req.DriverID)
	if common.HandleServiceError(c, err, "failed to mark arriving") {
		return
	}

	common.SuccessResponse(c, ride)
}

// markArrived handles POST /api/v1/driver/rides/:id/arrived
func (h *Handler) markArrived(c *gin.Context) {
	rideID, ok := common.ParseUUIDParam(c, "id", "ride id")
	if !ok {
		return
	}

	var req driverActionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.MarkArrived(c.Request.Context(), rideID, req.DriverID)
	if common.HandleServiceError(c, err, "failed to mark arrived") {
		return
	}

	common.SuccessResponse(c, resp)
}

// startTrip handles POST /api/v1/trips/:id/start
func (h *Handler) startTrip(c *gin.Context) {
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	var req models.StartTripRequest
	if !common.BindJSON(c, &req) {
		return
	}

	trip, err := h.service.StartTrip(c.Request.Context(), tripID, req)
	if common.HandleServiceError(c, err, "failed to start trip") {
		return
	}

	common.SuccessResponse(c, trip)
}

// endTrip handles POST /api/v1/trips/:id/end
func (h *Handler) endTrip(c *gin.Context) {
	tripID, ok := common.ParseUUIDParam(c, "id", "trip id")
	if !ok {
		return
	}

	var req models.EndTripRequest
	if !common.BindJSON(c, &req) {
		return
	}

	trip, err := h.service.EndTrip(c.Request.Context(), tripID, req)
	if common.HandleServiceError(c, err, "failed to end trip") {
		return
	}

	common.SuccessResponse(c, trip)
}
