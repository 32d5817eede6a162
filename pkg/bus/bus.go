// Package bus provides topic-based publish/subscribe for ride and driver
// location updates. Delivery is fire-and-forget: subscribers that cannot
// keep up lose messages rather than slowing publishers down.
package bus

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Handler receives the JSON-encoded payload of a published message.
// Handlers must not block; slow handlers cause drops, not backpressure.
type Handler func(topic string, payload []byte)

// Unsubscribe removes a subscription. Safe to call more than once.
type Unsubscribe func()

// Bus is the update fan-out used by the ride engine, the location pipeline
// and the realtime gateway.
type Bus interface {
	// Publish JSON-marshals payload and delivers it to current subscribers
	// of topic. An error means the message could not be handed off at all;
	// individual slow subscribers never fail a publish.
	Publish(ctx context.Context, topic string, payload any) error

	// Subscribe registers handler for topic and returns its disposer.
	Subscribe(topic string, handler Handler) (Unsubscribe, error)

	// Close tears down all subscriptions and releases resources.
	Close() error
}

// RideTopic is the per-ride update channel.
func RideTopic(rideID uuid.UUID) string {
	return "ride:" + rideID.String()
}

// LocationTopic is the per-driver location stream.
func LocationTopic(driverID uuid.UUID) string {
	return "location:" + driverID.String()
}

// TopicClass returns the topic family ("ride", "location") for metric
// labels, keeping per-entity IDs out of label cardinality.
func TopicClass(topic string) string {
	if i := strings.IndexByte(topic, ':'); i > 0 {
		return topic[:i]
	}
	return "other"
}
