package rides

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/velocab/ridecore/internal/geoindex"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/models"
)

func candidate(id uuid.UUID, distanceKm, rating float64) geoindex.Candidate {
	return geoindex.Candidate{
		DriverID:   id,
		DistanceKm: distanceKm,
		Meta:       geoindex.Meta{Tier: models.RideTypeStandard, Rating: rating},
	}
}

func TestSortCandidatesNearestFirst(t *testing.T) {
	e := newTestEngine(t)
	far := candidate(uuid.New(), 3.0, 5.0)
	near := candidate(uuid.New(), 1.0, 3.0)

	cs := []geoindex.Candidate{far, near}
	e.service.sortCandidates(cs)

	assert.Equal(t, near.DriverID, cs[0].DriverID)
	assert.Equal(t, far.DriverID, cs[1].DriverID)
}

func TestSortCandidatesRatingBreaksNearTies(t *testing.T) {
	e := newTestEngine(t)
	lowRated := candidate(uuid.New(), 1.0, 4.1)
	highRated := candidate(uuid.New(), 1.3, 4.9)

	cs := []geoindex.Candidate{lowRated, highRated}
	e.service.sortCandidates(cs)

	// Within the 0.5 km band the better rating wins despite being farther.
	assert.Equal(t, highRated.DriverID, cs[0].DriverID)
}

func TestSortCandidatesDriverIDStabilizesFullTies(t *testing.T) {
	e := newTestEngine(t)
	a := candidate(uuid.MustParse("00000000-0000-0000-0000-000000000001"), 1.0, 4.5)
	b := candidate(uuid.MustParse("00000000-0000-0000-0000-000000000002"), 1.0, 4.5)

	cs := []geoindex.Candidate{b, a}
	e.service.sortCandidates(cs)

	assert.Equal(t, a.DriverID, cs[0].DriverID)
}

func TestCandidatesForFiltersTier(t *testing.T) {
	e := newTestEngine(t)
	standard := candidate(uuid.New(), 1.0, 4.5)
	premium := candidate(uuid.New(), 0.5, 4.9)
	premium.Meta.Tier = models.RideTypePremium
	e.geo.candidates = []geoindex.Candidate{standard, premium}

	cs := e.service.candidatesFor(models.RideTypeStandard, 0, 0)

	require.Len(t, cs, 1)
	assert.Equal(t, standard.DriverID, cs[0].DriverID)
}

func TestRunMatchingFailsAfterExhaustedAttempts(t *testing.T) {
	e := newTestEngine(t)
	ride := searchingRide(uuid.New())
	ride.SearchAttempts = 3

	failed := *ride
	failed.Status = models.RideStatusFailed

	e.repo.On("GetRideByID", mock.Anything, ride.ID).Return(ride, nil)
	e.repo.On("IncrementSearchAttempts", mock.Anything, ride.ID).Return(nil).Times(3)
	e.repo.On("FailSearching", mock.Anything, ride.ID).Return(&failed, nil).Once()
	e.repo.On("AppendEvent", mock.Anything, ride.ID, models.EventMatchingFailed, mock.Anything).Return(nil)

	e.service.runMatching(context.Background(), ride.ID, models.RideTypeStandard, 0, 0)

	e.repo.AssertExpectations(t)
	assert.Contains(t, e.notifier.sent(), models.NotificationNoDriversFound)
}

func TestRunMatchingAbandonsWhenRideLeavesSearching(t *testing.T) {
	e := newTestEngine(t)
	ride := searchingRide(uuid.New())
	ride.Status = models.RideStatusCancelled

	e.repo.On("GetRideByID", mock.Anything, ride.ID).Return(ride, nil).Once()

	e.service.runMatching(context.Background(), ride.ID, models.RideTypeStandard, 0, 0)

	e.repo.AssertNotCalled(t, "IncrementSearchAttempts", mock.Anything, mock.Anything)
	e.repo.AssertNotCalled(t, "FailSearching", mock.Anything, mock.Anything)
}

func TestRunMatchingClaimsBestCandidate(t *testing.T) {
	e := newTestEngine(t)
	ride := searchingRide(uuid.New())
	best := candidate(uuid.New(), 0.8, 4.9)
	worse := candidate(uuid.New(), 2.5, 4.2)
	e.geo.candidates = []geoindex.Candidate{worse, best}

	matched := *ride
	matched.Status = models.RideStatusMatched
	matched.DriverID = &best.DriverID

	e.repo.On("GetRideByID", mock.Anything, ride.ID).Return(ride, nil)
	e.repo.On("IncrementSearchAttempts", mock.Anything, ride.ID).Return(nil)
	e.repo.On("MatchRide", mock.Anything, ride.ID, best.DriverID).Return(&matched, nil).Once()
	e.repo.On("AppendEvent", mock.Anything, ride.ID, models.EventDriverMatched, mock.Anything).Return(nil)

	e.service.runMatching(context.Background(), ride.ID, models.RideTypeStandard, 0, 0)

	e.repo.AssertNotCalled(t, "MatchRide", mock.Anything, ride.ID, worse.DriverID)
	assert.Equal(t, []uuid.UUID{best.DriverID}, e.geo.removed)
}

func TestRunMatchingSkipsClaimedDriver(t *testing.T) {
	e := newTestEngine(t)
	ride := searchingRide(uuid.New())
	claimed := candidate(uuid.New(), 0.8, 4.9)
	fallback := candidate(uuid.New(), 2.5, 4.2)
	e.geo.candidates = []geoindex.Candidate{claimed, fallback}

	matched := *ride
	matched.Status = models.RideStatusMatched
	matched.DriverID = &fallback.DriverID

	e.repo.On("GetRideByID", mock.Anything, ride.ID).Return(ride, nil)
	e.repo.On("IncrementSearchAttempts", mock.Anything, ride.ID).Return(nil)
	e.repo.On("MatchRide", mock.Anything, ride.ID, claimed.DriverID).
		Return(nil, common.NewConflictError("driver is no longer available")).Once()
	e.repo.On("MatchRide", mock.Anything, ride.ID, fallback.DriverID).Return(&matched, nil).Once()
	e.repo.On("AppendEvent", mock.Anything, ride.ID, models.EventDriverMatched, mock.Anything).Return(nil)

	e.service.runMatching(context.Background(), ride.ID, models.RideTypeStandard, 0, 0)

	e.repo.AssertExpectations(t)
}
