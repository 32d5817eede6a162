package realtime

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/websocket"
)

// Handler exposes the websocket endpoint.
type Handler struct {
	gateway *Gateway
}

// NewHandler creates a realtime handler.
func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// RegisterRoutes mounts the websocket endpoint on the root router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.serveWS)
}

// serveWS handles GET /ws: upgrade, then pump until the peer drops.
func (h *Handler) serveWS(c *gin.Context) {
	conn, err := websocket.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.WarnContext(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	var sess *session
	client := websocket.NewClient(clientID, conn, h.gateway.hub, func(c *websocket.Client, data []byte) {
		sess.handleInbound(c, data)
	})
	sess = h.gateway.newSession(client)

	h.gateway.hub.Register(client, sess.dispose)

	go client.WritePump()
	go client.ReadPump()
}
