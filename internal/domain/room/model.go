package room

import (
	"jan-server/services/listen-api/internal/domain/queue"
)

// Mode is the session mode of a room.
type Mode string

const (
	ModeIdle           Mode = "idle"
	ModeQueuedPlayback Mode = "queued-playback"
	ModeLiveBroadcast  Mode = "live-broadcast"
)

// State is the mode-specific part of a session. Exactly one of Idle,
// QueuedPlayback or LiveBroadcast is active at a time, so a live room can
// never carry a current track and vice versa.
type State interface {
	Mode() Mode
	sealed()
}

// Idle has neither a current track nor a live stream.
type Idle struct{}

// QueuedPlayback plays Track from the shared queue.
type QueuedPlayback struct {
	Track   CurrentTrack
	Playing bool
}

// LiveBroadcast relays the owner's live audio.
type LiveBroadcast struct {
	Stream LiveStream
}

func (Idle) Mode() Mode           { return ModeIdle }
func (QueuedPlayback) Mode() Mode { return ModeQueuedPlayback }
func (LiveBroadcast) Mode() Mode  { return ModeLiveBroadcast }

func (Idle) sealed()           {}
func (QueuedPlayback) sealed() {}
func (LiveBroadcast) sealed()  {}

// CurrentTrack is the track being played in queued-playback.
type CurrentTrack struct {
	EntryID          string  `json:"entry_id"`
	TrackRef         string  `json:"track_ref"`
	Title            string  `json:"title"`
	Artist           string  `json:"artist,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds"`
	StartedAtEpochMs int64   `json:"started_at_epoch_ms"`
	PausedAtEpochMs  int64   `json:"paused_at_epoch_ms,omitempty"`
	AddedByIdentity  string  `json:"added_by_identity"`
}

func newCurrentTrack(entry queue.Entry, nowMs int64) CurrentTrack {
	return CurrentTrack{
		EntryID:          entry.ID,
		TrackRef:         entry.TrackRef,
		Title:            entry.Title,
		Artist:           entry.Artist,
		DurationSeconds:  entry.DurationSeconds,
		StartedAtEpochMs: nowMs,
		AddedByIdentity:  entry.AddedByIdentity,
	}
}

// DurationMs returns the track length in milliseconds.
func (t CurrentTrack) DurationMs() int64 {
	return int64(t.DurationSeconds * 1000)
}

// ElapsedMs returns the playback position at nowMs, frozen at the pause
// instant while paused and clamped to [0, duration].
func (t CurrentTrack) ElapsedMs(nowMs int64) int64 {
	ref := nowMs
	if t.PausedAtEpochMs != 0 {
		ref = t.PausedAtEpochMs
	}
	elapsed := ref - t.StartedAtEpochMs
	if elapsed < 0 {
		return 0
	}
	if d := t.DurationMs(); elapsed > d {
		return d
	}
	return elapsed
}

// Paused reports whether the track is paused.
func (t CurrentTrack) Paused() bool {
	return t.PausedAtEpochMs != 0
}

// Marker identifies the track a client observed.
func (t CurrentTrack) Marker() Marker {
	return Marker{EntryID: t.EntryID, StartedAtEpochMs: t.StartedAtEpochMs}
}

// LiveStream describes the owner's live broadcast.
type LiveStream struct {
	Title             string `json:"title"`
	StartedAtEpochMs  int64  `json:"started_at_epoch_ms"`
	PublisherIdentity string `json:"publisher_identity"`
	DeviceRef         string `json:"device_ref,omitempty"`

	// LegEpoch changes whenever the server reissued transport legs while
	// staying live. Clients reconnect their leg when it changes.
	LegEpoch uint64 `json:"leg_epoch,omitempty"`
}

// Marker is the track identity a client observed when sending an
// end-of-track or skip signal.
type Marker struct {
	EntryID          string `json:"entry_id"`
	StartedAtEpochMs int64  `json:"started_at_epoch_ms"`
}
