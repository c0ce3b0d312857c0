package room

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/queue"
	"jan-server/services/listen-api/internal/utils/idgen"
)

// Settings tune the timing rules of every room.
type Settings struct {
	PresenceTTL             time.Duration
	EndOfTrackTolerance     time.Duration
	AutoAdvanceGrace        time.Duration
	AutoStopLiveOnOwnerExit bool
	TransportTimeout        time.Duration

	// DriftThreshold is published to clients as the drift they tolerate
	// before seeking.
	DriftThreshold time.Duration
}

// Clock returns the current server time.
type Clock func() time.Time

// Result is the outcome of an operation. Applied is false when the operation
// was accepted but changed nothing, e.g. a stale end-of-track signal.
type Result struct {
	Applied  bool      `json:"applied"`
	Snapshot *Snapshot `json:"snapshot"`
}

// Publisher receives every newly published snapshot. Publish must not block.
type Publisher interface {
	Publish(snap *Snapshot)
}

// MutationObserver is told the outcome of every room operation.
type MutationObserver func(operation, outcome string)

// Outcomes reported to the MutationObserver.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeStale    = "stale"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type roomEnv struct {
	settings  Settings
	clock     Clock
	ctrl      *controller
	publisher Publisher
	observe   MutationObserver
	log       zerolog.Logger
}

type change int

const (
	changeNone change = iota
	// changeRefresh updates the readable snapshot without a new version,
	// used for heartbeats.
	changeRefresh
	changePublish
	changeStale
)

// Room is the single serialized mutation point of one listening session.
// Writers hold mu; readers load the last published snapshot without locking.
type Room struct {
	id        string
	name      string
	ownerID   string
	createdAt time.Time
	env       *roomEnv

	mu        sync.Mutex
	state     State
	queue     *queue.Queue
	presence  *presence.Registry
	legs      map[string]Credential
	version   uint64
	updatedAt time.Time
	closed    bool

	// reissued is set when legs were reissued during a failed teardown; the
	// next apply publishes even when the operation itself failed.
	reissued bool

	snapshot atomic.Pointer[Snapshot]
}

func newRoom(id, name, ownerID string, now time.Time, env *roomEnv) *Room {
	r := &Room{
		id:        id,
		name:      name,
		ownerID:   ownerID,
		createdAt: now,
		env:       env,
		state:     Idle{},
		queue:     queue.New(),
		presence:  presence.NewRegistry(env.settings.PresenceTTL),
		legs:      make(map[string]Credential),
		version:   1,
		updatedAt: now,
	}
	r.snapshot.Store(buildSnapshot(r, now))
	return r
}

// restoreRoom rebuilds a room from a persisted snapshot. Presence and
// transport legs do not survive a restart, so a live room comes back idle.
func restoreRoom(snap *Snapshot, env *roomEnv) *Room {
	r := &Room{
		id:        snap.RoomID,
		name:      snap.Name,
		ownerID:   snap.OwnerID,
		createdAt: time.UnixMilli(snap.CreatedAtMs),
		env:       env,
		state:     snap.State(),
		queue:     queue.New(snap.Queue...),
		presence:  presence.NewRegistry(env.settings.PresenceTTL),
		legs:      make(map[string]Credential),
		version:   snap.Version,
		updatedAt: time.UnixMilli(snap.UpdatedAtMs),
	}
	if r.state.Mode() == ModeLiveBroadcast {
		r.state = Idle{}
	}
	r.snapshot.Store(buildSnapshot(r, env.clock()))
	return r
}

// ID returns the room id.
func (r *Room) ID() string { return r.id }

// OwnerID returns the owner identity.
func (r *Room) OwnerID() string { return r.ownerID }

// Snapshot returns a copy of the last published snapshot stamped with the current time.
func (r *Room) Snapshot() *Snapshot {
	return r.snapshot.Load().At(r.env.clock())
}

func (r *Room) logger() *zerolog.Logger {
	l := r.env.log.With().Str("room_id", r.id).Logger()
	return &l
}

func (r *Room) apply(ctx context.Context, op string, fn func(now time.Time) (change, error)) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errRoomNotFound(ctx, r.id)
	}

	now := r.env.clock()
	ch, err := fn(now)
	if err != nil {
		outcome := OutcomeRejected
		if IsTransportUnavailable(err) {
			outcome = OutcomeFailed
		}
		if r.reissued {
			r.publish(op, now)
		}
		r.env.observe(op, outcome)
		return nil, err
	}
	if r.reissued {
		ch = changePublish
	}

	switch ch {
	case changePublish:
		r.publish(op, now)
		r.env.observe(op, OutcomeApplied)
	case changeRefresh:
		r.snapshot.Store(buildSnapshot(r, now))
		r.env.observe(op, OutcomeApplied)
	case changeStale:
		r.env.observe(op, OutcomeStale)
		r.logger().Debug().Str("operation", op).Msg("stale signal ignored")
	default:
		r.env.observe(op, OutcomeNoop)
	}

	return &Result{
		Applied:  ch == changePublish || ch == changeRefresh,
		Snapshot: r.snapshot.Load().At(now),
	}, nil
}

// publish bumps the version and hands the new snapshot to the publisher.
// Callers hold mu.
func (r *Room) publish(op string, now time.Time) {
	r.reissued = false
	r.version++
	r.updatedAt = now
	snap := buildSnapshot(r, now)
	r.snapshot.Store(snap)
	r.env.publisher.Publish(snap)
	r.logger().Info().
		Str("operation", op).
		Str("mode", string(r.state.Mode())).
		Uint64("version", r.version).
		Msg("room updated")
}

// exitLive tears down every transport leg. When a failed teardown reissued
// legs the stream's leg epoch moves on so clients reconnect. Callers hold mu.
func (r *Room) exitLive(ctx context.Context) error {
	open, reissued, err := r.env.ctrl.exitLive(ctx, r.id, r.legs)
	r.legs = open
	if reissued {
		if live, ok := r.state.(LiveBroadcast); ok {
			live.Stream.LegEpoch++
			r.state = live
			r.reissued = true
		}
	}
	return err
}

func (r *Room) requireOwner(ctx context.Context, op, identity string) error {
	if identity == "" || identity != r.ownerID {
		return errForbidden(ctx, op, identity)
	}
	return nil
}

// advance pops the queue head into the current track, or goes idle when the
// queue is empty. Callers hold mu.
func (r *Room) advance(now time.Time) change {
	next, ok := r.queue.Pop()
	if !ok {
		if r.state.Mode() == ModeIdle {
			return changeNone
		}
		r.state = Idle{}
		return changePublish
	}
	r.state = QueuedPlayback{Track: newCurrentTrack(next, now.UnixMilli()), Playing: true}
	return changePublish
}

// Join adds identity to the presence list. During a live broadcast a
// listener leg is connected first; if that fails nothing changes.
func (r *Room) Join(ctx context.Context, identity string, meta presence.Meta) (*Result, error) {
	return r.apply(ctx, "join", func(now time.Time) (change, error) {
		if live, ok := r.state.(LiveBroadcast); ok && identity != live.Stream.PublisherIdentity {
			if _, connected := r.legs[identity]; !connected {
				cred, err := r.env.ctrl.connectListener(ctx, r.id, identity, meta.DisplayName)
				if err != nil {
					return changeNone, errTransportUnavailable(ctx, "join", err)
				}
				r.legs[identity] = cred
			}
		}

		if _, created := r.presence.Join(identity, meta, now); created {
			return changePublish, nil
		}
		return changeRefresh, nil
	})
}

// Heartbeat refreshes identity. An expired or unknown identity is ignored.
func (r *Room) Heartbeat(ctx context.Context, identity string) (*Result, error) {
	return r.apply(ctx, "heartbeat", func(now time.Time) (change, error) {
		if !r.presence.Heartbeat(identity, now) {
			return changeNone, nil
		}
		return changeRefresh, nil
	})
}

// Leave removes identity from the presence list and closes its listener leg.
func (r *Room) Leave(ctx context.Context, identity string) (*Result, error) {
	return r.apply(ctx, "leave", func(now time.Time) (change, error) {
		if !r.presence.Leave(identity) {
			return changeNone, nil
		}
		r.departed(ctx, []string{identity}, now)
		return changePublish, nil
	})
}

// Reap removes expired presence entries, closes their legs, retries a
// pending auto stop and advances a track nobody reported as ended.
func (r *Room) Reap(ctx context.Context) (*Result, error) {
	return r.apply(ctx, "reap", func(now time.Time) (change, error) {
		ch := changeNone

		removed := r.presence.Reap(now)
		if len(removed) > 0 {
			identities := make([]string, len(removed))
			for i, entry := range removed {
				identities[i] = entry.Identity
			}
			r.logger().Info().Strs("identities", identities).Msg("presence expired")
			r.departed(ctx, identities, now)
			ch = changePublish
		} else if r.ownerAbsentFromLive(now) && r.stopForOwnerExit(ctx) {
			ch = changePublish
		}

		if r.env.settings.AutoAdvanceGrace > 0 {
			if qp, ok := r.state.(QueuedPlayback); ok && qp.Playing {
				overdue := now.UnixMilli() - (qp.Track.StartedAtEpochMs + qp.Track.DurationMs())
				if overdue > r.env.settings.AutoAdvanceGrace.Milliseconds() {
					r.logger().Info().Str("entry_id", qp.Track.EntryID).Int64("overdue_ms", overdue).Msg("advancing unreported track end")
					if r.advance(now) == changePublish {
						ch = changePublish
					}
				}
			}
		}
		return ch, nil
	})
}

// departed handles transport side effects of identities leaving. Callers hold mu.
func (r *Room) departed(ctx context.Context, identities []string, now time.Time) {
	live, ok := r.state.(LiveBroadcast)
	if !ok {
		return
	}
	for _, identity := range identities {
		if identity == live.Stream.PublisherIdentity {
			continue
		}
		if _, connected := r.legs[identity]; !connected {
			continue
		}
		if err := r.env.ctrl.disconnect(ctx, r.id, identity); err != nil {
			r.logger().Warn().Err(err).Str("identity", identity).Msg("failed to disconnect departed listener")
		}
		delete(r.legs, identity)
	}
	if r.ownerAbsentFromLive(now) {
		r.stopForOwnerExit(ctx)
	}
}

func (r *Room) ownerAbsentFromLive(now time.Time) bool {
	return r.env.settings.AutoStopLiveOnOwnerExit &&
		r.state.Mode() == ModeLiveBroadcast &&
		!r.presence.Contains(r.ownerID, now)
}

// stopForOwnerExit ends the live broadcast after the owner left. On failure
// the room stays live and the next reap retries.
func (r *Room) stopForOwnerExit(ctx context.Context) bool {
	if err := r.exitLive(ctx); err != nil {
		r.logger().Warn().Err(err).Msg("auto stop of live broadcast failed, will retry")
		return false
	}
	r.state = Idle{}
	r.logger().Info().Msg("live broadcast stopped after owner exit")
	return true
}

// TrackEnded is the natural end-of-track signal. Only the first signal
// matching the current track after its end advances the queue.
func (r *Room) TrackEnded(ctx context.Context, identity string, observed Marker) (*Result, error) {
	return r.apply(ctx, "track_ended", func(now time.Time) (change, error) {
		if identity != r.ownerID && !r.presence.Contains(identity, now) {
			return changeNone, errForbidden(ctx, "track_ended", identity)
		}
		qp, ok := r.state.(QueuedPlayback)
		if !ok || qp.Track.Marker() != observed {
			return changeStale, nil
		}
		endMs := qp.Track.StartedAtEpochMs + qp.Track.DurationMs() - r.env.settings.EndOfTrackTolerance.Milliseconds()
		if qp.Track.Paused() || now.UnixMilli() < endMs {
			return changeStale, nil
		}
		return r.advance(now), nil
	})
}

// Skip advances the queue regardless of the remaining time. A non-nil
// observed marker that no longer matches makes the skip a no-op.
func (r *Room) Skip(ctx context.Context, identity string, observed *Marker) (*Result, error) {
	return r.apply(ctx, "skip", func(now time.Time) (change, error) {
		if err := r.requireOwner(ctx, "skip", identity); err != nil {
			return changeNone, err
		}
		qp, ok := r.state.(QueuedPlayback)
		if !ok {
			return changeNone, errInvalidTransition(ctx, "skip", r.state.Mode())
		}
		if observed != nil && qp.Track.Marker() != *observed {
			return changeStale, nil
		}
		return r.advance(now), nil
	})
}

// StartQueue resumes queued playback from idle.
func (r *Room) StartQueue(ctx context.Context, identity string) (*Result, error) {
	return r.apply(ctx, "start_queue", func(now time.Time) (change, error) {
		if err := r.requireOwner(ctx, "start_queue", identity); err != nil {
			return changeNone, err
		}
		switch r.state.Mode() {
		case ModeIdle:
			return r.advance(now), nil
		case ModeQueuedPlayback:
			return changeNone, nil
		default:
			return changeNone, errInvalidTransition(ctx, "start_queue", r.state.Mode())
		}
	})
}

// SetPlaying pauses or resumes the current track. Resuming shifts the start
// time so the elapsed position is exactly the one frozen at pause.
func (r *Room) SetPlaying(ctx context.Context, identity string, playing bool) (*Result, error) {
	return r.apply(ctx, "set_playing", func(now time.Time) (change, error) {
		if err := r.requireOwner(ctx, "set_playing", identity); err != nil {
			return changeNone, err
		}
		qp, ok := r.state.(QueuedPlayback)
		if !ok {
			return changeNone, errInvalidTransition(ctx, "set_playing", r.state.Mode())
		}
		if qp.Playing == playing {
			return changeNone, nil
		}

		nowMs := now.UnixMilli()
		track := qp.Track
		if playing {
			elapsed := track.PausedAtEpochMs - track.StartedAtEpochMs
			track.StartedAtEpochMs = nowMs - elapsed
			track.PausedAtEpochMs = 0
		} else {
			track.PausedAtEpochMs = track.StartedAtEpochMs + track.ElapsedMs(nowMs)
		}
		r.state = QueuedPlayback{Track: track, Playing: playing}
		return changePublish, nil
	})
}

// Enqueue appends a track. An idle room starts playing it immediately.
func (r *Room) Enqueue(ctx context.Context, identity string, track queue.Track) (*Result, error) {
	return r.apply(ctx, "enqueue", func(now time.Time) (change, error) {
		if err := r.requireOwner(ctx, "enqueue", identity); err != nil {
			return changeNone, err
		}
		if err := track.Validate(); err != nil {
			return changeNone, errValidation(ctx, "invalid track", err)
		}
		r.queue.Enqueue(queue.Entry{
			Track:           track,
			ID:              idgen.NewSortableID("qe", now),
			AddedByIdentity: identity,
			AddedAtEpochMs:  now.UnixMilli(),
		})
		if r.state.Mode() == ModeIdle {
			r.advance(now)
		}
		return changePublish, nil
	})
}

// Remove deletes a pending entry. The current track can only be skipped.
func (r *Room) Remove(ctx context.Context, identity, entryID string) (*Result, error) {
	return r.apply(ctx, "remove", func(now time.Time) (change, error) {
		if err := r.requireOwner(ctx, "remove", identity); err != nil {
			return changeNone, err
		}
		if qp, ok := r.state.(QueuedPlayback); ok && qp.Track.EntryID == entryID {
			return changeNone, errInvalidTransition(ctx, "remove of the current track", r.state.Mode())
		}
		if _, ok := r.queue.Remove(entryID); !ok {
			return changeNone, errEntryNotFound(ctx, entryID)
		}
		return changePublish, nil
	})
}

// LiveRequest describes a live broadcast start.
type LiveRequest struct {
	Title       string
	DeviceRef   string
	DisplayName string
}

// StartLive switches the room to live-broadcast. The current track is torn
// down, the queue is kept. The owner is joined to presence and connected as
// publisher and every present listener is connected before the new state is
// published.
func (r *Room) StartLive(ctx context.Context, identity string, req LiveRequest) (*Result, *Credential, error) {
	var publisher Credential
	res, err := r.apply(ctx, "start_live", func(now time.Time) (change, error) {
		if err := r.requireOwner(ctx, "start_live", identity); err != nil {
			return changeNone, err
		}
		if !CanTransition(r.state.Mode(), ModeLiveBroadcast) {
			return changeNone, errInvalidTransition(ctx, "start_live", r.state.Mode())
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			return changeNone, errValidation(ctx, "live stream title is required", nil)
		}

		owner, ok := r.presence.Get(identity, now)
		if !ok {
			owner = presence.Entry{Identity: identity}
		}
		if req.DisplayName != "" {
			owner.DisplayMeta.DisplayName = req.DisplayName
		}

		var listeners []presence.Entry
		for _, entry := range r.presence.List(now) {
			if entry.Identity != identity {
				listeners = append(listeners, entry)
			}
		}

		legs, err := r.env.ctrl.enterLive(ctx, r.id, owner, req.DeviceRef, listeners)
		if err != nil {
			return changeNone, errTransportUnavailable(ctx, "start_live", err)
		}

		r.presence.Join(identity, owner.DisplayMeta, now)
		r.legs = legs
		publisher = legs[identity]
		r.state = LiveBroadcast{Stream: LiveStream{
			Title:             title,
			StartedAtEpochMs:  now.UnixMilli(),
			PublisherIdentity: identity,
			DeviceRef:         req.DeviceRef,
		}}
		return changePublish, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res, &publisher, nil
}

// StopLive returns the room to idle after every leg is disconnected. It never
// resumes the queue.
func (r *Room) StopLive(ctx context.Context, identity string) (*Result, error) {
	return r.apply(ctx, "stop_live", func(now time.Time) (change, error) {
		if err := r.requireOwner(ctx, "stop_live", identity); err != nil {
			return changeNone, err
		}
		if r.state.Mode() != ModeLiveBroadcast {
			return changeNone, errInvalidTransition(ctx, "stop_live", r.state.Mode())
		}
		if err := r.exitLive(ctx); err != nil {
			return changeNone, errTransportUnavailable(ctx, "stop_live", err)
		}
		r.state = Idle{}
		return changePublish, nil
	})
}

// Credential returns the open transport leg of identity.
func (r *Room) Credential(ctx context.Context, identity string) (*Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.legs[identity]
	if r.closed || !ok {
		return nil, errCredentialNotFound(ctx, r.id, identity)
	}
	return &cred, nil
}

// close ends the room. A live broadcast is stopped first and a failure keeps
// the room open. Owner checks are left to the caller.
func (r *Room) close(ctx context.Context) (*Result, error) {
	return r.apply(ctx, "close", func(now time.Time) (change, error) {
		if r.state.Mode() == ModeLiveBroadcast {
			if err := r.exitLive(ctx); err != nil {
				return changeNone, errTransportUnavailable(ctx, "close", err)
			}
		}
		r.state = Idle{}
		r.closed = true
		return changePublish, nil
	})
}

// evictable reports whether the room is idle, empty and untouched since cutoff.
func (r *Room) evictable(now, cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed &&
		r.state.Mode() == ModeIdle &&
		r.queue.Len() == 0 &&
		len(r.presence.List(now)) == 0 &&
		r.updatedAt.Before(cutoff)
}
