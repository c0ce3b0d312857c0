package handlers

import (
	"context"

	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/queue"
	"jan-server/services/listen-api/internal/domain/room"
)

// RoomHandler handles room-related HTTP requests.
type RoomHandler struct {
	service room.Service
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(service room.Service) *RoomHandler {
	return &RoomHandler{service: service}
}

// CreateRoom creates a room owned by userID.
func (h *RoomHandler) CreateRoom(ctx context.Context, userID string, req room.CreateRoomRequest) (*room.Snapshot, error) {
	return h.service.CreateRoom(ctx, userID, req)
}

// GetRoom returns the current snapshot of a room.
func (h *RoomHandler) GetRoom(ctx context.Context, roomID string) (*room.Snapshot, error) {
	return h.service.GetSnapshot(ctx, roomID)
}

// ListRooms returns every hosted room.
func (h *RoomHandler) ListRooms(ctx context.Context) ([]*room.Snapshot, error) {
	return h.service.ListRooms(ctx)
}

// DeleteRoom removes a room.
func (h *RoomHandler) DeleteRoom(ctx context.Context, roomID, userID string) error {
	return h.service.DeleteRoom(ctx, roomID, userID)
}

func (h *RoomHandler) Join(ctx context.Context, roomID, userID string, meta presence.Meta) (*room.Result, error) {
	return h.service.Join(ctx, roomID, userID, meta)
}

func (h *RoomHandler) Heartbeat(ctx context.Context, roomID, userID string) (*room.Result, error) {
	return h.service.Heartbeat(ctx, roomID, userID)
}

func (h *RoomHandler) Leave(ctx context.Context, roomID, userID string) (*room.Result, error) {
	return h.service.Leave(ctx, roomID, userID)
}

func (h *RoomHandler) ListPresence(ctx context.Context, roomID string) ([]presence.Entry, error) {
	return h.service.ListPresence(ctx, roomID)
}

func (h *RoomHandler) Enqueue(ctx context.Context, roomID, userID string, track queue.Track) (*room.Result, error) {
	return h.service.Enqueue(ctx, roomID, userID, track)
}

func (h *RoomHandler) RemoveEntry(ctx context.Context, roomID, userID, entryID string) (*room.Result, error) {
	return h.service.RemoveEntry(ctx, roomID, userID, entryID)
}

func (h *RoomHandler) Skip(ctx context.Context, roomID, userID string, observed *room.Marker) (*room.Result, error) {
	return h.service.Skip(ctx, roomID, userID, observed)
}

func (h *RoomHandler) StartQueue(ctx context.Context, roomID, userID string) (*room.Result, error) {
	return h.service.StartQueue(ctx, roomID, userID)
}

func (h *RoomHandler) TrackEnded(ctx context.Context, roomID, userID string, observed room.Marker) (*room.Result, error) {
	return h.service.TrackEnded(ctx, roomID, userID, observed)
}

func (h *RoomHandler) SetPlaying(ctx context.Context, roomID, userID string, playing bool) (*room.Result, error) {
	return h.service.SetPlaying(ctx, roomID, userID, playing)
}

func (h *RoomHandler) StartLive(ctx context.Context, roomID, userID string, req room.LiveRequest) (*room.Result, *room.Credential, error) {
	return h.service.StartLive(ctx, roomID, userID, req)
}

func (h *RoomHandler) StopLive(ctx context.Context, roomID, userID string) (*room.Result, error) {
	return h.service.StopLive(ctx, roomID, userID)
}

// TransportCredential returns the caller's own live leg credential.
func (h *RoomHandler) TransportCredential(ctx context.Context, roomID, userID string) (*room.Credential, error) {
	return h.service.TransportCredential(ctx, roomID, userID)
}
