// Package playback is the client side of room synchronization. It turns a
// published room snapshot into what a local player and transport leg
// should be doing, and applies those decisions.
package playback

import (
	"math"
	"time"

	"jan-server/services/listen-api/internal/domain/room"
)

// DefaultDriftThreshold is the drift a client tolerates before seeking.
const DefaultDriftThreshold = 3 * time.Second

// Target is where a client should be according to the room.
type Target struct {
	Mode            room.Mode
	EntryID         string
	ElapsedSeconds  float64
	DurationSeconds float64
	ShouldPlay      bool
}

// ComputeTarget derives the target position from snap at now. Only
// queued-playback has a position; the other modes never play locally.
func ComputeTarget(snap *room.Snapshot, now time.Time) Target {
	target := Target{Mode: snap.Mode}
	if snap.Mode != room.ModeQueuedPlayback || snap.CurrentTrack == nil {
		return target
	}

	track := snap.CurrentTrack
	target.EntryID = track.EntryID
	target.DurationSeconds = track.DurationSeconds
	target.ElapsedSeconds = float64(track.ElapsedMs(now.UnixMilli())) / 1000
	target.ShouldPlay = snap.IsPlaying && track.PausedAtEpochMs == 0
	return target
}

// Decision is the correction a client applies to its local player.
type Decision struct {
	Seek   bool
	SeekTo float64
	Play   bool
	Pause  bool
}

// Reconcile compares the actual local position with target. Drift is
// measured in whole seconds and a seek happens only when it exceeds
// threshold; smaller drift is left to natural playback. A paused target
// pauses regardless of drift.
func Reconcile(target Target, actualSeconds float64, playing bool, threshold time.Duration) Decision {
	var d Decision
	if target.Mode != room.ModeQueuedPlayback {
		d.Pause = playing
		return d
	}

	if !target.ShouldPlay {
		d.Pause = playing
	} else {
		d.Play = !playing
	}

	drift := math.Floor(math.Abs(target.ElapsedSeconds - actualSeconds))
	if drift > threshold.Seconds() {
		d.Seek = true
		d.SeekTo = target.ElapsedSeconds
	}
	return d
}

// LegStep is the change to the client's live transport leg.
type LegStep int

const (
	LegKeep LegStep = iota
	LegConnect
	LegDisconnect
	LegReconnect
)

func (s LegStep) String() string {
	switch s {
	case LegConnect:
		return "connect"
	case LegDisconnect:
		return "disconnect"
	case LegReconnect:
		return "reconnect"
	default:
		return "keep"
	}
}

// TransportStep returns the leg change implied by a mode change. The role of
// the leg (publisher or listener) comes from the credential the server issued.
func TransportStep(prev, next room.Mode) LegStep {
	switch {
	case prev != room.ModeLiveBroadcast && next == room.ModeLiveBroadcast:
		return LegConnect
	case prev == room.ModeLiveBroadcast && next != room.ModeLiveBroadcast:
		return LegDisconnect
	default:
		return LegKeep
	}
}

// LegChange returns the leg change from the last applied mode and leg epoch
// to snap. A new epoch while staying live means the server reissued the leg.
func LegChange(prevMode room.Mode, prevEpoch uint64, snap *room.Snapshot) LegStep {
	step := TransportStep(prevMode, snap.Mode)
	if step == LegKeep && snap.Mode == room.ModeLiveBroadcast && snap.LiveStream != nil &&
		snap.LiveStream.LegEpoch != prevEpoch {
		return LegReconnect
	}
	return step
}

func legEpoch(snap *room.Snapshot) uint64 {
	if snap.LiveStream == nil {
		return 0
	}
	return snap.LiveStream.LegEpoch
}
