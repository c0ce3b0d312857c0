package room

import (
	"time"

	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/queue"
)

// Snapshot is the read-only view of a room delivered to clients. Published
// snapshots are immutable; readers receive copies.
type Snapshot struct {
	RoomID       string           `json:"room_id"`
	Name         string           `json:"name"`
	OwnerID      string           `json:"owner_id"`
	Mode         Mode             `json:"mode"`
	CurrentTrack *CurrentTrack    `json:"current_track,omitempty"`
	IsPlaying    bool             `json:"is_playing"`
	LiveStream   *LiveStream      `json:"live_stream,omitempty"`
	Queue        []queue.Entry    `json:"queue"`
	Presence     []presence.Entry `json:"presence"`
	Version      uint64           `json:"version"`
	CreatedAtMs  int64            `json:"created_at_ms"`
	UpdatedAtMs  int64            `json:"updated_at_ms"`
	ServerTimeMs int64            `json:"server_time_ms"`
	Closed       bool             `json:"closed,omitempty"`

	// DriftThresholdMs is the drift clients tolerate before seeking.
	DriftThresholdMs int64 `json:"drift_threshold_ms,omitempty"`

	presenceTTL time.Duration
}

// State rebuilds the tagged session state from the flat snapshot fields.
func (s *Snapshot) State() State {
	switch {
	case s.Mode == ModeQueuedPlayback && s.CurrentTrack != nil:
		return QueuedPlayback{Track: *s.CurrentTrack, Playing: s.IsPlaying}
	case s.Mode == ModeLiveBroadcast && s.LiveStream != nil:
		return LiveBroadcast{Stream: *s.LiveStream}
	default:
		return Idle{}
	}
}

// Marker returns the marker of the current track, if any.
func (s *Snapshot) Marker() *Marker {
	if s.CurrentTrack == nil {
		return nil
	}
	m := s.CurrentTrack.Marker()
	return &m
}

// At returns a copy stamped with now and with expired presence filtered out.
func (s *Snapshot) At(now time.Time) *Snapshot {
	out := s.clone()
	out.ServerTimeMs = now.UnixMilli()
	if s.presenceTTL > 0 {
		out.Presence = presence.Active(out.Presence, now, s.presenceTTL)
	}
	return out
}

func (s *Snapshot) clone() *Snapshot {
	out := *s
	if s.CurrentTrack != nil {
		track := *s.CurrentTrack
		out.CurrentTrack = &track
	}
	if s.LiveStream != nil {
		stream := *s.LiveStream
		out.LiveStream = &stream
	}
	out.Queue = append(make([]queue.Entry, 0, len(s.Queue)), s.Queue...)
	out.Presence = append(make([]presence.Entry, 0, len(s.Presence)), s.Presence...)
	return &out
}

func buildSnapshot(r *Room, now time.Time) *Snapshot {
	snap := &Snapshot{
		RoomID:       r.id,
		Name:         r.name,
		OwnerID:      r.ownerID,
		Mode:         r.state.Mode(),
		Queue:        r.queue.Entries(),
		Presence:     r.presence.All(),
		Version:      r.version,
		CreatedAtMs:  r.createdAt.UnixMilli(),
		UpdatedAtMs:  r.updatedAt.UnixMilli(),
		ServerTimeMs: now.UnixMilli(),
		Closed:       r.closed,
		presenceTTL:  r.presence.TTL(),

		DriftThresholdMs: r.env.settings.DriftThreshold.Milliseconds(),
	}

	switch st := r.state.(type) {
	case QueuedPlayback:
		track := st.Track
		snap.CurrentTrack = &track
		snap.IsPlaying = st.Playing
	case LiveBroadcast:
		stream := st.Stream
		snap.LiveStream = &stream
	}
	return snap
}
