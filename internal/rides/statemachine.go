// Package rides is the ride lifecycle engine: creation, driver matching,
// the state machine from SEARCHING through COMPLETED, cancellation and the
// trip execution flow. All contentious transitions are serialized through
// the per-ride matching lock and guarded persistence updates.
package rides

import "github.com/velocab/ridecore/pkg/models"

// Event is a lifecycle trigger applied to a ride.
type Event string

const (
	EventOfferAccepted Event = "offer_accepted"
	EventNoDrivers     Event = "no_drivers"
	EventCancel        Event = "cancel"
	EventEnRoute       Event = "driver_en_route"
	EventAtPickup      Event = "driver_at_pickup"
	EventStartTrip     Event = "start_trip"
	EventEndTrip       Event = "end_trip"
)

// canTransition returns the target status for an event applied in a given
// source status, and whether the transition is legal. Illegal transitions
// mutate nothing.
func canTransition(from models.RideStatus, event Event) (models.RideStatus, bool) {
	switch event {
	case EventOfferAccepted:
		if from == models.RideStatusSearching {
			return models.RideStatusMatched, true
		}
	case EventNoDrivers:
		if from == models.RideStatusSearching {
			return models.RideStatusFailed, true
		}
	case EventCancel:
		switch from {
		case models.RideStatusSearching, models.RideStatusMatched,
			models.RideStatusDriverArriving, models.RideStatusArrived:
			return models.RideStatusCancelled, true
		}
	case EventEnRoute:
		if from == models.RideStatusMatched {
			return models.RideStatusDriverArriving, true
		}
	case EventAtPickup:
		if from == models.RideStatusDriverArriving {
			return models.RideStatusArrived, true
		}
	case EventStartTrip:
		if from == models.RideStatusArrived {
			return models.RideStatusInProgress, true
		}
	case EventEndTrip:
		if from == models.RideStatusInProgress {
			return models.RideStatusCompleted, true
		}
	}
	return from, false
}
