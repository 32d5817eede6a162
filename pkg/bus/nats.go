package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/metrics"
)

// NATSBus carries bus topics over core NATS subjects for multi-instance
// deployments. Delivery stays at-most-once with per-publisher ordering,
// matching the in-memory semantics.
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to the NATS server at url.
func NewNATSBus(url, clientName string) (*NATSBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info("NATS bus connected", zap.String("url", url))
	return &NATSBus{conn: conn}, nil
}

// Publish marshals payload onto the subject derived from topic.
func (b *NATSBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}

	if err := b.conn.Publish(topicToSubject(topic), data); err != nil {
		metrics.BusDroppedTotal.WithLabelValues(TopicClass(topic)).Inc()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	metrics.BusPublishedTotal.WithLabelValues(TopicClass(topic)).Inc()
	return nil
}

// Subscribe delivers messages for topic to handler. NATS runs handlers on
// its own dispatch goroutines, so panics are contained per message here the
// same way the memory bus does.
func (b *NATSBus) Subscribe(topic string, handler Handler) (Unsubscribe, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}

	sub, err := b.conn.Subscribe(topicToSubject(topic), func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("bus handler panicked",
					zap.String("topic", topic),
					zap.Any("panic", r),
				)
			}
		}()
		handler(topic, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil && !strings.Contains(err.Error(), "invalid subscription") {
			logger.Warn("unsubscribe failed",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}, nil
}

// Connected reports whether the underlying connection is up.
func (b *NATSBus) Connected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// Close drains in-flight messages and closes the connection.
func (b *NATSBus) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Drain()
}

// topicToSubject maps "ride:<id>" to "ride.<id>"; NATS treats ':' as an
// ordinary character but '.' is the conventional separator.
func topicToSubject(topic string) string {
	return strings.ReplaceAll(topic, ":", ".")
}
