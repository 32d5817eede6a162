package rides

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/internal/geoindex"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/metrics"
	"github.com/velocab/ridecore/pkg/models"
)

// startMatching launches the detached matching loop for a new ride. The
// loop outlives the creating request, so it runs on context.Background.
func (s *Service) startMatching(ride *models.Ride) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(context.Background(), "matching loop panic",
					zap.String("ride_id", ride.ID.String()),
					zap.Any("panic", r),
				)
			}
		}()
		s.runMatching(context.Background(), ride.ID, ride.RideType, ride.PickupLatitude, ride.PickupLongitude)
	}()
}

// runMatching searches for a driver in bounded attempts. Each attempt
// queries the geo index, filters to the requested tier and walks candidates
// nearest-first, claiming through the same locked path a direct accept
// uses. The loop exits early when the ride leaves SEARCHING.
func (s *Service) runMatching(ctx context.Context, rideID uuid.UUID, tier models.RideType, pickupLat, pickupLng float64) {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		ride, err := s.repo.GetRideByID(ctx, rideID)
		if err != nil {
			logger.WarnContext(ctx, "matching status check failed",
				zap.String("ride_id", rideID.String()),
				zap.Error(err),
			)
			return
		}
		if ride.Status != models.RideStatusSearching {
			// Accepted directly or cancelled while we slept.
			metrics.MatchingOutcomes.WithLabelValues("abandoned").Inc()
			return
		}

		if err := s.repo.IncrementSearchAttempts(ctx, rideID); err != nil {
			logger.WarnContext(ctx, "search attempt counter update failed",
				zap.String("ride_id", rideID.String()),
				zap.Error(err),
			)
		}
		metrics.MatchingAttemptsTotal.Inc()

		candidates := s.candidatesFor(tier, pickupLat, pickupLng)
		logger.InfoContext(ctx, "matching attempt",
			zap.String("ride_id", rideID.String()),
			zap.Int("attempt", attempt),
			zap.Int("candidates", len(candidates)),
		)

		matched, stop := s.walkCandidates(ctx, rideID, candidates)
		if matched {
			metrics.MatchingOutcomes.WithLabelValues("matched").Inc()
			return
		}
		if stop {
			metrics.MatchingOutcomes.WithLabelValues("abandoned").Inc()
			return
		}

		if attempt < s.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.AttemptBackoff):
			}
		}
	}

	s.failMatching(ctx, rideID)
}

// candidatesFor queries the index around the pickup, keeps the requested
// tier and orders by the matching preference.
func (s *Service) candidatesFor(tier models.RideType, lat, lng float64) []geoindex.Candidate {
	raw := s.geo.Query(lat, lng, s.cfg.SearchRadiusKm, s.cfg.CandidateLimit)

	candidates := raw[:0]
	for _, c := range raw {
		if c.Meta.Tier == tier {
			candidates = append(candidates, c)
		}
	}
	s.sortCandidates(candidates)
	return candidates
}

// sortCandidates orders nearest-first; within the tie-break band the higher
// rated driver wins, then driver ID for a stable order.
func (s *Service) sortCandidates(candidates []geoindex.Candidate) {
	band := s.cfg.RatingTieBreakKm
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if math.Abs(a.DistanceKm-b.DistanceKm) < band {
			if a.Meta.Rating != b.Meta.Rating {
				return a.Meta.Rating > b.Meta.Rating
			}
			return a.DriverID.String() < b.DriverID.String()
		}
		return a.DistanceKm < b.DistanceKm
	})
}

// walkCandidates offers the ride to each candidate in order. A Conflict
// means that driver was claimed elsewhere; any other claim failure means
// the ride itself left SEARCHING.
func (s *Service) walkCandidates(ctx context.Context, rideID uuid.UUID, candidates []geoindex.Candidate) (matched, stop bool) {
	for _, c := range candidates {
		err := s.tryMatch(ctx, rideID, c.DriverID)
		if err == nil {
			return true, false
		}
		if common.IsKind(err, common.KindConflict) {
			ride, lookupErr := s.repo.GetRideByID(ctx, rideID)
			if lookupErr == nil && ride.Status != models.RideStatusSearching {
				return false, true
			}
			continue
		}
		logger.WarnContext(ctx, "candidate claim failed",
			zap.String("ride_id", rideID.String()),
			zap.String("driver_id", c.DriverID.String()),
			zap.Error(err),
		)
	}
	return false, false
}

// failMatching marks a still-searching ride FAILED after attempts are
// exhausted. A concurrent accept or cancel makes the guard miss, which is
// not a failure.
func (s *Service) failMatching(ctx context.Context, rideID uuid.UUID) {
	failed, err := s.repo.FailSearching(ctx, rideID)
	if err != nil {
		logger.ErrorContext(ctx, "matching failure transition errored",
			zap.String("ride_id", rideID.String()),
			zap.Error(err),
		)
		return
	}
	if failed == nil {
		metrics.MatchingOutcomes.WithLabelValues("abandoned").Inc()
		return
	}

	metrics.MatchingOutcomes.WithLabelValues("failed").Inc()
	s.afterTransition(ctx, failed, models.RideStatusSearching, models.EventMatchingFailed, map[string]interface{}{
		"attempts": failed.SearchAttempts,
	})
	s.notify(ctx, failed.RiderID, failed.ID, models.NotificationNoDriversFound,
		"No drivers available", "We couldn't find a driver. Please try again shortly.")
}
