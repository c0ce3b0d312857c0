package handlers

import (
	"github.com/google/wire"

	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/interfaces/httpserver/hub"
)

// Provider holds all HTTP handlers.
type Provider struct {
	Room   *RoomHandler
	Socket *SocketHandler
}

// NewProvider creates a new handler provider.
func NewProvider(roomService room.Service, snapshotHub *hub.Hub) *Provider {
	return &Provider{
		Room:   NewRoomHandler(roomService),
		Socket: NewSocketHandler(roomService, snapshotHub),
	}
}

// HandlerProvider provides all handlers for wire.
var HandlerProvider = wire.NewSet(
	NewProvider,
)
