package rides

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/velocab/ridecore/pkg/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name   string
		from   models.RideStatus
		event  Event
		wantTo models.RideStatus
		wantOK bool
	}{
		{"accept from searching", models.RideStatusSearching, EventOfferAccepted, models.RideStatusMatched, true},
		{"accept from matched rejected", models.RideStatusMatched, EventOfferAccepted, models.RideStatusMatched, false},
		{"no drivers from searching", models.RideStatusSearching, EventNoDrivers, models.RideStatusFailed, true},
		{"no drivers after match rejected", models.RideStatusMatched, EventNoDrivers, models.RideStatusMatched, false},
		{"cancel from searching", models.RideStatusSearching, EventCancel, models.RideStatusCancelled, true},
		{"cancel from matched", models.RideStatusMatched, EventCancel, models.RideStatusCancelled, true},
		{"cancel from arriving", models.RideStatusDriverArriving, EventCancel, models.RideStatusCancelled, true},
		{"cancel from arrived", models.RideStatusArrived, EventCancel, models.RideStatusCancelled, true},
		{"cancel in progress rejected", models.RideStatusInProgress, EventCancel, models.RideStatusInProgress, false},
		{"cancel completed rejected", models.RideStatusCompleted, EventCancel, models.RideStatusCompleted, false},
		{"en route from matched", models.RideStatusMatched, EventEnRoute, models.RideStatusDriverArriving, true},
		{"en route from searching rejected", models.RideStatusSearching, EventEnRoute, models.RideStatusSearching, false},
		{"at pickup from arriving", models.RideStatusDriverArriving, EventAtPickup, models.RideStatusArrived, true},
		{"at pickup skipping arriving rejected", models.RideStatusMatched, EventAtPickup, models.RideStatusMatched, false},
		{"start from arrived", models.RideStatusArrived, EventStartTrip, models.RideStatusInProgress, true},
		{"start from matched rejected", models.RideStatusMatched, EventStartTrip, models.RideStatusMatched, false},
		{"end from in progress", models.RideStatusInProgress, EventEndTrip, models.RideStatusCompleted, true},
		{"end from arrived rejected", models.RideStatusArrived, EventEndTrip, models.RideStatusArrived, false},
		{"nothing from cancelled", models.RideStatusCancelled, EventOfferAccepted, models.RideStatusCancelled, false},
		{"nothing from failed", models.RideStatusFailed, EventStartTrip, models.RideStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to, ok := canTransition(tt.from, tt.event)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}
