package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocab/ridecore/pkg/bus"
)

func setupGateway(t *testing.T) (*Gateway, *bus.MemoryBus, *gorilla.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	memBus := bus.NewMemoryBus()
	gateway := NewGateway(memBus)
	router := gin.New()
	NewHandler(gateway).RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		gateway.Close()
		_ = memBus.Close()
		server.Close()
	})

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return gateway, memBus, conn
}

func readJSON(t *testing.T, conn *gorilla.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestSubscribeReceivesRideUpdates(t *testing.T) {
	_, memBus, conn := setupGateway(t)
	rideID := uuid.New()
	topic := bus.RideTopic(rideID)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": topic}))
	ackMsg := readJSON(t, conn)
	assert.Equal(t, "subscribed", ackMsg["type"])

	// Subscription registration is asynchronous only from the peer's view;
	// the ack means the bus handler is installed.
	require.NoError(t, memBus.Publish(context.Background(), topic, map[string]string{
		"type":   "status_update",
		"status": "MATCHED",
	}))

	update := readJSON(t, conn)
	assert.Equal(t, "status_update", update["type"])
	assert.Equal(t, "MATCHED", update["status"])
}

func TestUnsubscribeStopsUpdates(t *testing.T) {
	_, memBus, conn := setupGateway(t)
	topic := bus.RideTopic(uuid.New())

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": topic}))
	readJSON(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "unsubscribe", "topic": topic}))
	ackMsg := readJSON(t, conn)
	assert.Equal(t, "unsubscribed", ackMsg["type"])

	require.NoError(t, memBus.Publish(context.Background(), topic, map[string]string{"type": "status_update"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestRejectsUnknownTopics(t *testing.T) {
	_, _, conn := setupGateway(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": "admin:everything"}))
	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": "ride:not-a-uuid"}))
	msg = readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestDisconnectTearsDownSubscriptions(t *testing.T) {
	gateway, _, conn := setupGateway(t)
	topic := bus.RideTopic(uuid.New())

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "subscribe", "topic": topic}))
	readJSON(t, conn)
	assert.Equal(t, 1, gateway.ClientCount())

	conn.Close()

	require.Eventually(t, func() bool {
		return gateway.ClientCount() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
