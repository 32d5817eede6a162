package pricing

import (
	"context"
	"sync"
	"time"

	h3 "github.com/uber/h3-go/v4"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/models"
)

const surgeZoneCacheTTL = 30 * time.Second

// surgeResolver maps a pickup point to the current surge multiplier via H3
// cell membership. Active zones are memoized briefly; surge reads happen on
// every ride creation.
type surgeResolver struct {
	repo *Repository

	mu        sync.Mutex
	zones     []models.SurgeZone
	fetchedAt time.Time
}

func newSurgeResolver(repo *Repository) *surgeResolver {
	return &surgeResolver{repo: repo}
}

// Multiplier returns the highest multiplier among active zones covering the
// pickup, or 1.0 when none apply. Zone lookup failures degrade to 1.0
// rather than blocking ride creation.
func (s *surgeResolver) Multiplier(ctx context.Context, lat, lng float64) float64 {
	zones, err := s.activeZones(ctx)
	if err != nil {
		logger.WarnContext(ctx, "surge zone lookup failed, defaulting to 1.0", zap.Error(err))
		return 1.0
	}

	multiplier := 1.0
	for _, zone := range zones {
		if zone.Multiplier <= multiplier {
			continue
		}
		if zoneCovers(&zone, lat, lng) {
			multiplier = zone.Multiplier
		}
	}
	return multiplier
}

// zoneCovers tests pickup membership: the pickup's H3 cell at the zone's
// resolution must be in the zone's cell set. A zone with no cells covers
// everything while active.
func zoneCovers(zone *models.SurgeZone, lat, lng float64) bool {
	if len(zone.H3Cells) == 0 {
		return true
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), zone.H3Resolution)
	if err != nil {
		return false
	}
	cellStr := cell.String()

	for _, c := range zone.H3Cells {
		if c == cellStr {
			return true
		}
	}
	return false
}

func (s *surgeResolver) activeZones(ctx context.Context) ([]models.SurgeZone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.fetchedAt) < surgeZoneCacheTTL && s.zones != nil {
		return s.zones, nil
	}

	zones, err := s.repo.ListActiveSurgeZones(ctx)
	if err != nil {
		return nil, err
	}

	s.zones = zones
	s.fetchedAt = time.Now()
	return zones, nil
}
