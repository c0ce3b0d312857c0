package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/interfaces/httpserver/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SocketHandler upgrades room subscriptions to websockets.
type SocketHandler struct {
	service room.Service
	hub     *hub.Hub
}

// NewSocketHandler creates a new socket handler.
func NewSocketHandler(service room.Service, snapshotHub *hub.Hub) *SocketHandler {
	return &SocketHandler{service: service, hub: snapshotHub}
}

// Snapshot returns the snapshot a new subscriber starts from.
func (h *SocketHandler) Snapshot(c *gin.Context, roomID string) (*room.Snapshot, error) {
	return h.service.GetSnapshot(c.Request.Context(), roomID)
}

// Serve upgrades the request and streams snapshots of roomID until the
// client disconnects.
func (h *SocketHandler) Serve(c *gin.Context, roomID, userID string, initial *room.Snapshot) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("websocket upgrade failed")
		return
	}
	h.hub.Serve(conn, roomID, userID, initial)
}
