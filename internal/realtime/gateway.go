// Package realtime bridges the internal pub/sub bus to websocket clients.
// Clients subscribe to ride and driver location topics and receive every
// update published while they are connected; there is no replay.
package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/bus"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/websocket"
)

// Gateway fans bus topics out to websocket clients.
type Gateway struct {
	bus bus.Bus
	hub *websocket.Hub
}

// NewGateway creates a realtime gateway on the given bus.
func NewGateway(b bus.Bus) *Gateway {
	return &Gateway{
		bus: b,
		hub: websocket.NewHub(),
	}
}

// Close disconnects all clients.
func (g *Gateway) Close() {
	g.hub.Close()
}

// ClientCount returns the number of connected clients.
func (g *Gateway) ClientCount() int {
	return g.hub.ClientCount()
}

// session tracks one client's live subscriptions.
type session struct {
	gateway *Gateway
	client  *websocket.Client

	mu   sync.Mutex
	subs map[string]bus.Unsubscribe
}

type command struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type ack struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Error string `json:"error,omitempty"`
}

func (g *Gateway) newSession(client *websocket.Client) *session {
	return &session{
		gateway: g,
		client:  client,
		subs:    make(map[string]bus.Unsubscribe),
	}
}

// handleInbound runs on the client's read goroutine for every frame.
func (s *session) handleInbound(c *websocket.Client, data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.sendAck(ack{Type: "error", Error: "invalid message"})
		return
	}
	if !validTopic(cmd.Topic) {
		s.sendAck(ack{Type: "error", Topic: cmd.Topic, Error: "unknown topic"})
		return
	}

	switch cmd.Action {
	case "subscribe":
		s.subscribe(cmd.Topic)
	case "unsubscribe":
		s.unsubscribe(cmd.Topic)
	default:
		s.sendAck(ack{Type: "error", Error: "unknown action"})
	}
}

func (s *session) subscribe(topic string) {
	s.mu.Lock()
	if _, exists := s.subs[topic]; exists {
		s.mu.Unlock()
		s.sendAck(ack{Type: "subscribed", Topic: topic})
		return
	}
	s.mu.Unlock()

	// Send queues and never blocks, so the bus handler stays fast.
	unsub, err := s.gateway.bus.Subscribe(topic, func(topic string, payload []byte) {
		s.client.Send(payload)
	})
	if err != nil {
		logger.Warn("realtime subscribe failed",
			zap.String("client_id", s.client.ID),
			zap.String("topic", topic),
			zap.Error(err),
		)
		s.sendAck(ack{Type: "error", Topic: topic, Error: "subscribe failed"})
		return
	}

	s.mu.Lock()
	if _, exists := s.subs[topic]; exists {
		s.mu.Unlock()
		unsub()
	} else {
		s.subs[topic] = unsub
		s.mu.Unlock()
	}
	s.sendAck(ack{Type: "subscribed", Topic: topic})
}

func (s *session) unsubscribe(topic string) {
	s.mu.Lock()
	unsub, exists := s.subs[topic]
	delete(s.subs, topic)
	s.mu.Unlock()

	if exists {
		unsub()
	}
	s.sendAck(ack{Type: "unsubscribed", Topic: topic})
}

// dispose tears down every subscription. Runs as the hub disconnect hook.
func (s *session) dispose() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]bus.Unsubscribe)
	s.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}

func (s *session) sendAck(a ack) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	s.client.Send(data)
}

// validTopic accepts the two public topic families, each keyed by a UUID.
func validTopic(topic string) bool {
	var id string
	switch {
	case strings.HasPrefix(topic, "ride:"):
		id = strings.TrimPrefix(topic, "ride:")
	case strings.HasPrefix(topic, "location:"):
		id = strings.TrimPrefix(topic, "location:")
	default:
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
