// Package roomres contains HTTP response DTOs for room endpoints.
package roomres

import (
	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/room"
)

// MutationResponse is returned by every room mutation. Applied is false for
// accepted signals that changed nothing.
type MutationResponse struct {
	Applied  bool           `json:"applied"`
	Snapshot *room.Snapshot `json:"snapshot"`
}

// ListRoomsResponse represents the response for listing rooms.
type ListRoomsResponse struct {
	Object string           `json:"object"`
	Data   []*room.Snapshot `json:"data"`
}

// PresenceResponse lists the identities present in a room.
type PresenceResponse struct {
	Object string           `json:"object"`
	RoomID string           `json:"room_id"`
	Data   []presence.Entry `json:"data"`
}

// CredentialResponse grants access to the live audio relay.
type CredentialResponse struct {
	Identity  string    `json:"identity"`
	Role      room.Role `json:"role"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	DeviceRef string    `json:"device_ref,omitempty"`
	ExpiresAt int64     `json:"expires_at"`
}

// LiveResponse is returned when a live broadcast starts.
type LiveResponse struct {
	MutationResponse
	Credential *CredentialResponse `json:"credential"`
}

// DeleteRoomResponse represents the response for deleting a room.
type DeleteRoomResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// NewMutationResponse converts a room result.
func NewMutationResponse(res *room.Result) *MutationResponse {
	return &MutationResponse{Applied: res.Applied, Snapshot: res.Snapshot}
}

// NewListRoomsResponse wraps snapshots in a list object.
func NewListRoomsResponse(snaps []*room.Snapshot) *ListRoomsResponse {
	if snaps == nil {
		snaps = []*room.Snapshot{}
	}
	return &ListRoomsResponse{Object: "list", Data: snaps}
}

// NewPresenceResponse wraps presence entries in a list object.
func NewPresenceResponse(roomID string, entries []presence.Entry) *PresenceResponse {
	if entries == nil {
		entries = []presence.Entry{}
	}
	return &PresenceResponse{Object: "list", RoomID: roomID, Data: entries}
}

// NewCredentialResponse converts a transport credential.
func NewCredentialResponse(cred *room.Credential) *CredentialResponse {
	if cred == nil {
		return nil
	}
	return &CredentialResponse{
		Identity:  cred.Identity,
		Role:      cred.Role,
		Token:     cred.Token,
		URL:       cred.URL,
		DeviceRef: cred.DeviceRef,
		ExpiresAt: cred.ExpiresAt.Unix(),
	}
}

// NewLiveResponse converts the result of a live start.
func NewLiveResponse(res *room.Result, cred *room.Credential) *LiveResponse {
	return &LiveResponse{
		MutationResponse: *NewMutationResponse(res),
		Credential:       NewCredentialResponse(cred),
	}
}

// NewDeleteRoomResponse creates a DeleteRoomResponse.
func NewDeleteRoomResponse(id string) *DeleteRoomResponse {
	return &DeleteRoomResponse{ID: id, Object: "room", Deleted: true}
}
