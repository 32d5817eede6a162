package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the ride lifecycle engine. All metrics are registered on
// the default registry and served by promhttp in the binary.
var (
	// Location ingest pipeline
	LocationPingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "location_pings_total",
		Help: "Total number of driver position pings accepted",
	})

	LocationPingsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "location_pings_dropped_total",
		Help: "Total number of buffered pings dropped under backpressure",
	})

	LocationFlushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "location_flush_failures_total",
		Help: "Total number of location batches dropped after flush retries",
	})

	LocationBatchWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "location_batch_writes_total",
		Help: "Total number of batched location inserts written to the store",
	})

	LocationBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "location_batch_size",
		Help:    "Number of pings persisted per batch write",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	// Update bus
	BusPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_published_total",
		Help: "Total number of messages published, by topic class",
	}, []string{"topic_class"})

	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bus_dropped_total",
		Help: "Total number of messages dropped due to slow subscribers",
	}, []string{"topic_class"})

	// Matching
	MatchingAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matching_attempts_total",
		Help: "Total number of candidate search attempts across all rides",
	})

	MatchingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matching_outcomes_total",
		Help: "Terminal outcomes of matching loops (matched, failed, abandoned)",
	}, []string{"outcome"})

	// Ride state machine
	RideTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_transitions_total",
		Help: "Total number of applied ride state transitions",
	}, []string{"from", "to"})

	// Payments
	PaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_outcomes_total",
		Help: "Payment settlement outcomes (completed, failed, replayed)",
	}, []string{"outcome"})

	// HTTP surface
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
