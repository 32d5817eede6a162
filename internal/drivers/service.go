// Package drivers owns driver profiles and availability. ON_RIDE is set and
// cleared by the ride engine; drivers themselves only toggle between
// AVAILABLE, OFFLINE and BREAK.
package drivers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/internal/geoindex"
	"github.com/velocab/ridecore/pkg/cache"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/models"
)

// Service manages driver availability and profile reads.
type Service struct {
	repo  *Repository
	cache *cache.Manager
	index *geoindex.Index

	staleAfter time.Duration
}

// NewService creates a driver service.
func NewService(repo *Repository, cacheManager *cache.Manager, index *geoindex.Index, staleAfter time.Duration) *Service {
	if staleAfter <= 0 {
		staleAfter = geoindex.DefaultStaleAfter
	}
	return &Service{
		repo:       repo,
		cache:      cacheManager,
		index:      index,
		staleAfter: staleAfter,
	}
}

// GetDriver returns a driver profile through the cache.
func (s *Service) GetDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	err := s.cache.GetOrSet(ctx, cache.Keys.Driver(driverID.String()), cache.TTL.Short(), &driver, func() (interface{}, error) {
		return s.repo.GetDriverByID(ctx, driverID)
	})
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

// UpdateAvailability applies a driver-requested status change and keeps the
// geo index in sync: going AVAILABLE requires a fresh position; leaving
// removes the driver from the candidate set.
func (s *Service) UpdateAvailability(ctx context.Context, driverID uuid.UUID, status models.DriverStatus) (*models.Driver, error) {
	if !status.ExternallySettable() {
		return nil, common.NewValidationError("status not settable by driver")
	}

	if status == models.DriverStatusAvailable {
		if err := s.checkFreshPosition(ctx, driverID); err != nil {
			return nil, err
		}
	}

	driver, err := s.repo.UpdateStatus(ctx, driverID, status)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, cache.Keys.Driver(driverID.String())); err != nil {
		logger.WarnContext(ctx, "driver cache invalidation failed",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	switch status {
	case models.DriverStatusAvailable:
		s.addToIndex(driver)
	default:
		s.index.Remove(driverID)
	}

	return driver, nil
}

// SetEngineStatus is the ride engine's hook for ON_RIDE / AVAILABLE flips
// around matching and trip completion. It bypasses the external-status
// check but shares cache invalidation and index upkeep.
func (s *Service) SetEngineStatus(ctx context.Context, driverID uuid.UUID, status models.DriverStatus) (*models.Driver, error) {
	driver, err := s.repo.UpdateStatus(ctx, driverID, status)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, cache.Keys.Driver(driverID.String())); err != nil {
		logger.WarnContext(ctx, "driver cache invalidation failed",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	if status == models.DriverStatusAvailable {
		s.addToIndex(driver)
	}

	return driver, nil
}

// ReseedIndex refreshes a driver's cache entry and geo index membership
// from the persisted row. The ride engine calls it after restoring a
// driver's availability inside a ride transaction.
func (s *Service) ReseedIndex(ctx context.Context, driverID uuid.UUID) {
	if err := s.cache.Delete(ctx, cache.Keys.Driver(driverID.String())); err != nil {
		logger.WarnContext(ctx, "driver cache invalidation failed",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
	}

	driver, err := s.repo.GetDriverByID(ctx, driverID)
	if err != nil {
		logger.WarnContext(ctx, "driver reload for index reseed failed",
			zap.String("driver_id", driverID.String()),
			zap.Error(err),
		)
		return
	}

	if driver.Status == models.DriverStatusAvailable {
		s.addToIndex(driver)
	} else {
		s.index.Remove(driverID)
	}
}

// GetEarnings summarizes a driver's earnings for a period. Zero times
// default to the last 7 days.
func (s *Service) GetEarnings(ctx context.Context, driverID uuid.UUID, from, to time.Time) (*models.EarningsSummary, error) {
	if _, err := s.GetDriver(ctx, driverID); err != nil {
		return nil, err
	}

	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}
	if !from.Before(to) {
		return nil, common.NewInvalidInputError("from must be before to", nil)
	}

	return s.repo.GetEarningsSummary(ctx, driverID, from, to)
}

// checkFreshPosition requires a recent position before a driver can enter
// the matchable pool, from the index or from the persisted driver row.
func (s *Service) checkFreshPosition(ctx context.Context, driverID uuid.UUID) error {
	if _, _, ok := s.index.Position(driverID); ok {
		return nil
	}

	driver, err := s.repo.GetDriverByID(ctx, driverID)
	if err != nil {
		return err
	}
	if driver.LastLocationUpdate == nil || driver.CurrentLatitude == nil || driver.CurrentLongitude == nil {
		return common.NewValidationError("no known position; send a location ping first")
	}
	if time.Since(*driver.LastLocationUpdate) > s.staleAfter {
		return common.NewValidationError("last known position is stale; send a location ping first")
	}
	return nil
}

// addToIndex seeds the index from the driver row when the position is fresh
// enough. Subsequent pings keep it current.
func (s *Service) addToIndex(driver *models.Driver) {
	if driver.CurrentLatitude == nil || driver.CurrentLongitude == nil || driver.LastLocationUpdate == nil {
		return
	}
	if time.Since(*driver.LastLocationUpdate) > s.staleAfter {
		return
	}
	s.index.Add(driver.ID, *driver.CurrentLatitude, *driver.CurrentLongitude, *driver.LastLocationUpdate, geoindex.Meta{
		Tier:   driver.VehicleType,
		Rating: driver.Rating,
		Status: driver.Status,
	})
}
