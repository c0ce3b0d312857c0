package playback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/room"
)

// Player is the local media device playing queued tracks.
type Player interface {
	Load(track room.CurrentTrack) error
	Unload()
	Position() float64
	Playing() bool
	SeekTo(seconds float64)
	Play()
	Pause()
}

// Leg is the client end of the live audio relay.
type Leg interface {
	Connect(ctx context.Context, cred *room.Credential) error
	Disconnect(ctx context.Context) error
}

// CredentialSource fetches the caller's transport credential for a room.
type CredentialSource func(ctx context.Context, roomID string) (*room.Credential, error)

// Actions records what one Apply call did.
type Actions struct {
	Loaded       string
	Unloaded     bool
	Seeked       bool
	SeekTo       float64
	Played       bool
	Paused       bool
	Leg          LegStep
	DriftSeconds float64
}

// Empty reports whether Apply changed nothing.
func (a Actions) Empty() bool {
	return a.Loaded == "" && !a.Unloaded && !a.Seeked && !a.Played && !a.Paused && a.Leg == LegKeep
}

func (a Actions) String() string {
	if a.Empty() {
		return "in sync"
	}
	var parts []string
	if a.Loaded != "" {
		parts = append(parts, "load "+a.Loaded)
	}
	if a.Unloaded {
		parts = append(parts, "unload")
	}
	if a.Seeked {
		parts = append(parts, fmt.Sprintf("seek to %.1fs (drift %.1fs)", a.SeekTo, a.DriftSeconds))
	}
	if a.Played {
		parts = append(parts, "play")
	}
	if a.Paused {
		parts = append(parts, "pause")
	}
	if a.Leg != LegKeep {
		parts = append(parts, a.Leg.String()+" leg")
	}
	return strings.Join(parts, ", ")
}

// FollowerConfig configures a Follower.
type FollowerConfig struct {
	// Threshold overrides the room's published drift threshold when positive.
	Threshold   time.Duration
	Clock       room.Clock
	Credentials CredentialSource
}

// Follower keeps a local player and transport leg in step with the
// snapshots of one room. It estimates the server clock offset from the
// server time of each snapshot.
type Follower struct {
	player Player
	leg    Leg
	cfg    FollowerConfig
	log    zerolog.Logger

	mu      sync.Mutex
	offset  time.Duration
	version uint64
	mode    room.Mode
	entryID string
	marker  *room.Marker
	legOpen bool
	epoch   uint64
}

// NewFollower creates a follower. leg may be nil for clients that never
// join live broadcasts.
func NewFollower(player Player, leg Leg, cfg FollowerConfig, log zerolog.Logger) *Follower {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Follower{
		player: player,
		leg:    leg,
		cfg:    cfg,
		log:    log.With().Str("component", "playback-follower").Logger(),
		mode:   room.ModeIdle,
	}
}

// threshold prefers the configured threshold, then the room's, then the
// default.
func (f *Follower) threshold(snap *room.Snapshot) time.Duration {
	switch {
	case f.cfg.Threshold > 0:
		return f.cfg.Threshold
	case snap.DriftThresholdMs > 0:
		return time.Duration(snap.DriftThresholdMs) * time.Millisecond
	default:
		return DefaultDriftThreshold
	}
}

// ServerNow returns the local estimate of the server clock.
func (f *Follower) ServerNow() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Clock().Add(f.offset)
}

// Marker returns the marker of the track being played, to be sent with an
// end-of-track signal.
func (f *Follower) Marker() *room.Marker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marker == nil {
		return nil
	}
	m := *f.marker
	return &m
}

// Apply reconciles the local state with snap. Snapshots older than the last
// applied version are ignored, except that the position is reconciled on
// every call so a periodic re-apply corrects drift.
func (f *Follower) Apply(ctx context.Context, snap *room.Snapshot) (Actions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var acts Actions
	if snap.Version < f.version {
		return acts, nil
	}

	local := f.cfg.Clock()
	if snap.ServerTimeMs > 0 {
		f.offset = time.UnixMilli(snap.ServerTimeMs).Sub(local)
	}
	f.version = snap.Version

	if err := f.applyLeg(ctx, snap, &acts); err != nil {
		return acts, err
	}

	target := ComputeTarget(snap, local.Add(f.offset))
	if target.EntryID != f.entryID {
		if target.EntryID == "" {
			f.player.Unload()
			acts.Unloaded = true
		} else if err := f.player.Load(*snap.CurrentTrack); err != nil {
			return acts, fmt.Errorf("load track %s: %w", target.EntryID, err)
		} else {
			acts.Loaded = snap.CurrentTrack.Title
		}
		f.entryID = target.EntryID
	}
	f.marker = snap.Marker()

	if target.EntryID == "" {
		return acts, nil
	}

	actual := f.player.Position()
	decision := Reconcile(target, actual, f.player.Playing(), f.threshold(snap))
	if decision.Seek {
		f.player.SeekTo(decision.SeekTo)
		acts.Seeked = true
		acts.SeekTo = decision.SeekTo
		acts.DriftSeconds = target.ElapsedSeconds - actual
	}
	if decision.Pause {
		f.player.Pause()
		acts.Paused = true
	}
	if decision.Play {
		f.player.Play()
		acts.Played = true
	}

	if !acts.Empty() {
		f.log.Debug().
			Str("room_id", snap.RoomID).
			Uint64("version", snap.Version).
			Str("actions", acts.String()).
			Msg("playback reconciled")
	}
	return acts, nil
}

// applyLeg opens or closes the transport leg on mode changes and reopens it
// when the server reissued it. The mode is only recorded once the leg change
// succeeded, so a failure is retried on the next snapshot.
func (f *Follower) applyLeg(ctx context.Context, snap *room.Snapshot, acts *Actions) error {
	step := LegChange(f.mode, f.epoch, snap)
	if f.leg == nil {
		f.mode = snap.Mode
		f.epoch = legEpoch(snap)
		return nil
	}

	switch {
	case step == LegReconnect && f.legOpen:
		if err := f.leg.Disconnect(ctx); err != nil {
			f.log.Debug().Err(err).Str("room_id", snap.RoomID).Msg("closing reissued leg failed")
		}
		f.legOpen = false
		if err := f.connect(ctx, snap.RoomID); err != nil {
			return err
		}
		acts.Leg = LegReconnect
	case (step == LegConnect || step == LegReconnect) && !f.legOpen && f.cfg.Credentials != nil:
		if err := f.connect(ctx, snap.RoomID); err != nil {
			return err
		}
		acts.Leg = LegConnect
	case step == LegDisconnect && f.legOpen:
		if err := f.leg.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect leg: %w", err)
		}
		f.legOpen = false
		acts.Leg = LegDisconnect
	}
	f.mode = snap.Mode
	f.epoch = legEpoch(snap)
	return nil
}

func (f *Follower) connect(ctx context.Context, roomID string) error {
	if f.cfg.Credentials == nil {
		return nil
	}
	cred, err := f.cfg.Credentials(ctx, roomID)
	if err != nil {
		return fmt.Errorf("fetch transport credential: %w", err)
	}
	if err := f.leg.Connect(ctx, cred); err != nil {
		return fmt.Errorf("connect %s leg: %w", cred.Role, err)
	}
	f.legOpen = true
	return nil
}
