package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (c *collector) handle(topic string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *collector) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

func TestMemoryBusDeliversToSubscriber(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	c := &collector{}
	_, err := b.Subscribe("ride:1", c.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "ride:1", map[string]string{"status": "MATCHED"}))

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(c.last(), &msg))
	assert.Equal(t, "MATCHED", msg["status"])
}

func TestMemoryBusTopicIsolation(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	rideSub := &collector{}
	otherSub := &collector{}
	_, err := b.Subscribe("ride:1", rideSub.handle)
	require.NoError(t, err)
	_, err = b.Subscribe("ride:2", otherSub.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "ride:1", "update"))

	require.Eventually(t, func() bool { return rideSub.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, otherSub.count())
}

func TestMemoryBusUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	c := &collector{}
	unsub, err := b.Subscribe("ride:1", c.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "ride:1", "one"))
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	unsub()
	unsub() // idempotent

	require.NoError(t, b.Publish(context.Background(), "ride:1", "two"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestMemoryBusPublishWithNoSubscribersSucceeds(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	assert.NoError(t, b.Publish(context.Background(), "ride:none", "update"))
}

func TestMemoryBusRejectsNilHandler(t *testing.T) {
	b := NewMemoryBus()
	defer func() { _ = b.Close() }()

	_, err := b.Subscribe("ride:1", nil)
	assert.Error(t, err)
}

func TestMemoryBusClosedRejectsSubscribe(t *testing.T) {
	b := NewMemoryBus()
	require.NoError(t, b.Close())

	_, err := b.Subscribe("ride:1", func(string, []byte) {})
	assert.Error(t, err)
	assert.Error(t, b.Publish(context.Background(), "ride:1", "x"))
}

func TestTopicNames(t *testing.T) {
	rideID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "ride:11111111-1111-1111-1111-111111111111", RideTopic(rideID))
	assert.Equal(t, "location:11111111-1111-1111-1111-111111111111", LocationTopic(rideID))

	assert.Equal(t, "ride", TopicClass("ride:abc"))
	assert.Equal(t, "location", TopicClass("location:abc"))
	assert.Equal(t, "other", TopicClass("plain"))
}
