// Package locations ingests high-frequency driver position pings: geo index
// update on the hot path, batched persistence, and fan-out to ride and
// location topics.
package locations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/internal/geoindex"
	"github.com/velocab/ridecore/pkg/bus"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/geo"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/metrics"
	"github.com/velocab/ridecore/pkg/models"
)

// DriverProvider loads driver profiles; the drivers service backs this with
// its read-through cache.
type DriverProvider interface {
	GetDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
}

// ActiveRideResolver maps a driver to their in-flight ride, if any.
type ActiveRideResolver interface {
	ActiveRideIDForDriver(ctx context.Context, driverID uuid.UUID) (*uuid.UUID, error)
}

// Service is the location ingest pipeline.
type Service struct {
	index   *geoindex.Index
	batcher *Batcher
	bus     bus.Bus
	drivers DriverProvider
	rides   ActiveRideResolver
}

// NewService creates the ingest service.
func NewService(index *geoindex.Index, batcher *Batcher, b bus.Bus, drivers DriverProvider, rides ActiveRideResolver) *Service {
	return &Service{
		index:   index,
		batcher: batcher,
		bus:     b,
		drivers: drivers,
		rides:   rides,
	}
}

// RecordPing processes one position ping. Only AVAILABLE and ON_RIDE drivers
// enter the geo index; all valid pings are persisted and published.
func (s *Service) RecordPing(ctx context.Context, driverID uuid.UUID, update *models.DriverLocationUpdate) error {
	if !geo.ValidCoordinates(update.Latitude, update.Longitude) {
		return common.NewInvalidInputError("coordinates out of range", nil)
	}
	if update.Speed != nil && *update.Speed < 0 {
		return common.NewInvalidInputError("speed must be non-negative", nil)
	}

	driver, err := s.drivers.GetDriver(ctx, driverID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if driver.Status == models.DriverStatusAvailable || driver.Status == models.DriverStatusOnRide {
		s.index.Add(driverID, update.Latitude, update.Longitude, now, geoindex.Meta{
			Tier:   driver.VehicleType,
			Rating: driver.Rating,
			Status: driver.Status,
		})
	}

	loc := models.DriverLocation{
		DriverID:   driverID,
		Latitude:   update.Latitude,
		Longitude:  update.Longitude,
		Heading:    update.Heading,
		Speed:      update.Speed,
		Accuracy:   update.Accuracy,
		RecordedAt: now,
	}
	s.batcher.Add(loc)

	metrics.LocationPingsTotal.Inc()

	if err := s.bus.Publish(ctx, bus.LocationTopic(driverID), loc); err != nil {
		logger.WarnContext(ctx, "location publish failed",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	s.publishToActiveRide(ctx, driverID, loc)
	return nil
}

// publishToActiveRide mirrors the ping onto the driver's active ride topic
// so ride watchers see the vehicle move without subscribing per driver.
func (s *Service) publishToActiveRide(ctx context.Context, driverID uuid.UUID, loc models.DriverLocation) {
	rideID, err := s.rides.ActiveRideIDForDriver(ctx, driverID)
	if err != nil {
		logger.WarnContext(ctx, "active ride lookup failed",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
		return
	}
	if rideID == nil {
		return
	}

	payload := map[string]interface{}{
		"type":            "driver_location",
		"ride_id":         rideID.String(),
		"driver_location": loc,
	}
	if err := s.bus.Publish(ctx, bus.RideTopic(*rideID), payload); err != nil {
		logger.WarnContext(ctx, "ride location publish failed",
			zap.String("ride_id", rideID.String()),
			zap.Error(err),
		)
	}
}
