package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are subscription commands, so the limit is tight.
	maxMessageSize = 4 * 1024

	sendBuffer = 256
)

// InboundHandler processes a frame received from the peer.
type InboundHandler func(c *Client, data []byte)

// Client is one websocket connection. All writes go through the Send
// channel so the connection has a single writer goroutine.
type Client struct {
	ID string

	hub     *Hub
	conn    *websocket.Conn
	sendCh  chan []byte
	inbound InboundHandler
}

// NewClient wraps an upgraded connection. The handler runs on the read
// goroutine for every inbound frame.
func NewClient(id string, conn *websocket.Conn, hub *Hub, inbound InboundHandler) *Client {
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		sendCh:  make(chan []byte, sendBuffer),
		inbound: inbound,
	}
}

// Send queues data for delivery. A client that cannot keep up is detached
// rather than allowed to block the caller.
func (c *Client) Send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		logger.Warn("websocket client send buffer full, detaching",
			zap.String("client_id", c.ID),
		)
		c.hub.Unregister(c)
	}
}

// ReadPump reads frames from the peer until the connection drops, then
// unregisters the client. Run as a goroutine, one per client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
			}
			return
		}

		if c.inbound != nil {
			c.inbound(c, data)
		}
	}
}

// WritePump writes queued frames and keepalive pings to the peer. Run as a
// goroutine, one per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
