// Package roomreq contains HTTP request DTOs for room endpoints.
package roomreq

import (
	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/queue"
	"jan-server/services/listen-api/internal/domain/room"
)

// CreateRoomRequest is the body of POST /rooms. The caller becomes the owner.
type CreateRoomRequest struct {
	ID   string `json:"id,omitempty" binding:"omitempty,max=64,excludesall=/?#%"`
	Name string `json:"name,omitempty" binding:"max=128"`
}

// ToDomain converts the request.
func (r CreateRoomRequest) ToDomain() room.CreateRoomRequest {
	return room.CreateRoomRequest{ID: r.ID, Name: r.Name}
}

// JoinRequest carries the display metadata shown to other listeners.
type JoinRequest struct {
	DisplayName string `json:"display_name,omitempty" binding:"max=128"`
	AvatarURL   string `json:"avatar_url,omitempty" binding:"omitempty,url,max=2048"`
}

// ToMeta converts the request, falling back to fallbackName.
func (r JoinRequest) ToMeta(fallbackName string) presence.Meta {
	name := r.DisplayName
	if name == "" {
		name = fallbackName
	}
	return presence.Meta{DisplayName: name, AvatarURL: r.AvatarURL}
}

// EnqueueRequest is the body of POST /rooms/:id/queue.
type EnqueueRequest struct {
	TrackRef        string  `json:"track_ref" binding:"required,max=2048"`
	Title           string  `json:"title" binding:"required,max=512"`
	Artist          string  `json:"artist,omitempty" binding:"max=512"`
	DurationSeconds float64 `json:"duration_seconds" binding:"gt=0,lte=86400"`
}

// ToDomain converts the request.
func (r EnqueueRequest) ToDomain() queue.Track {
	return queue.Track{
		TrackRef:        r.TrackRef,
		Title:           r.Title,
		Artist:          r.Artist,
		DurationSeconds: r.DurationSeconds,
	}
}

// MarkerRequest identifies the track the caller observed.
type MarkerRequest struct {
	EntryID          string `json:"entry_id" binding:"required"`
	StartedAtEpochMs int64  `json:"started_at_epoch_ms" binding:"required,gt=0"`
}

// ToDomain converts the request.
func (r MarkerRequest) ToDomain() room.Marker {
	return room.Marker{EntryID: r.EntryID, StartedAtEpochMs: r.StartedAtEpochMs}
}

// SkipRequest carries the marker of the track the owner meant to skip. An
// empty body skips unconditionally, so a retried request may advance twice.
type SkipRequest struct {
	EntryID          string `json:"entry_id,omitempty"`
	StartedAtEpochMs int64  `json:"started_at_epoch_ms,omitempty" binding:"required_with=EntryID"`
}

// Marker returns the observed marker or nil for an unconditional skip.
func (r SkipRequest) Marker() *room.Marker {
	if r.EntryID == "" {
		return nil
	}
	return &room.Marker{EntryID: r.EntryID, StartedAtEpochMs: r.StartedAtEpochMs}
}

// PlaybackRequest is the body of POST /rooms/:id/playback.
type PlaybackRequest struct {
	Playing *bool `json:"playing" binding:"required"`
}

// StartLiveRequest is the body of POST /rooms/:id/live.
type StartLiveRequest struct {
	Title       string `json:"title" binding:"required,max=256"`
	DeviceRef   string `json:"device_ref,omitempty" binding:"max=256"`
	DisplayName string `json:"display_name,omitempty" binding:"max=128"`
}

// ToDomain converts the request, falling back to fallbackName.
func (r StartLiveRequest) ToDomain(fallbackName string) room.LiveRequest {
	name := r.DisplayName
	if name == "" {
		name = fallbackName
	}
	return room.LiveRequest{Title: r.Title, DeviceRef: r.DeviceRef, DisplayName: name}
}
