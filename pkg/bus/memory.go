package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/metrics"
)

const defaultSubscriberBuffer = 64

// memorySubscriber owns a buffered channel drained by a dedicated dispatch
// goroutine, so one slow handler never delays the others on the same topic.
type memorySubscriber struct {
	id      uint64
	topic   string
	ch      chan []byte
	handler Handler
	done    chan struct{}
}

// MemoryBus is the in-process Bus used in single-instance deployments and
// tests. Per-topic ordering follows publish order; a subscriber whose buffer
// is full drops the message.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]*memorySubscriber
	nextID uint64
	closed bool

	buffer int
	wg     sync.WaitGroup
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		topics: make(map[string]map[uint64]*memorySubscriber),
		buffer: defaultSubscriberBuffer,
	}
}

// Publish marshals payload and enqueues it to every subscriber of topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	metrics.BusPublishedTotal.WithLabelValues(TopicClass(topic)).Inc()

	for _, sub := range b.topics[topic] {
		select {
		case sub.ch <- data:
		default:
			metrics.BusDroppedTotal.WithLabelValues(TopicClass(topic)).Inc()
			logger.Debug("bus subscriber buffer full, dropping message",
				zap.String("topic", topic),
			)
		}
	}
	return nil
}

// Subscribe registers handler for topic. The returned disposer is idempotent.
func (b *MemoryBus) Subscribe(topic string, handler Handler) (Unsubscribe, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("bus is closed")
	}

	b.nextID++
	sub := &memorySubscriber{
		id:      b.nextID,
		topic:   topic,
		ch:      make(chan []byte, b.buffer),
		handler: handler,
		done:    make(chan struct{}),
	}

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]*memorySubscriber)
	}
	b.topics[topic][sub.id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.dispatch(sub)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}, nil
}

// Close removes all subscribers and waits for dispatch goroutines to drain.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*memorySubscriber
	for _, byID := range b.topics {
		for _, sub := range byID {
			subs = append(subs, sub)
		}
	}
	b.topics = make(map[string]map[uint64]*memorySubscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
	b.wg.Wait()
	return nil
}

func (b *MemoryBus) remove(sub *memorySubscriber) {
	b.mu.Lock()
	if byID, ok := b.topics[sub.topic]; ok {
		delete(byID, sub.id)
		if len(byID) == 0 {
			delete(b.topics, sub.topic)
		}
	}
	b.mu.Unlock()

	close(sub.done)
}

func (b *MemoryBus) dispatch(sub *memorySubscriber) {
	defer b.wg.Done()

	for {
		select {
		case <-sub.done:
			return
		case data := <-sub.ch:
			b.deliver(sub, data)
		}
	}
}

// deliver isolates handler panics to the message being processed.
func (b *MemoryBus) deliver(sub *memorySubscriber, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("bus handler panicked",
				zap.String("topic", sub.topic),
				zap.Any("panic", r),
			)
		}
	}()

	sub.handler(sub.topic, data)
}
