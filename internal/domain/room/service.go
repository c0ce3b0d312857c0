package room

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/queue"
	"jan-server/services/listen-api/internal/utils/idgen"
	"jan-server/services/listen-api/internal/utils/platformerrors"
)

// CreateRoomRequest describes a new room. ID is generated when empty.
type CreateRoomRequest struct {
	ID   string
	Name string
}

// ReapStats summarizes one reap pass over all rooms.
type ReapStats struct {
	Rooms   int
	Changed int
	Failed  int
}

// Service defines the operations on listening rooms.
type Service interface {
	CreateRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*Snapshot, error)
	EnsureRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*Snapshot, bool, error)
	GetSnapshot(ctx context.Context, roomID string) (*Snapshot, error)
	ListRooms(ctx context.Context) ([]*Snapshot, error)
	DeleteRoom(ctx context.Context, roomID, identity string) error

	Join(ctx context.Context, roomID, identity string, meta presence.Meta) (*Result, error)
	Heartbeat(ctx context.Context, roomID, identity string) (*Result, error)
	Leave(ctx context.Context, roomID, identity string) (*Result, error)
	ListPresence(ctx context.Context, roomID string) ([]presence.Entry, error)

	Enqueue(ctx context.Context, roomID, identity string, track queue.Track) (*Result, error)
	RemoveEntry(ctx context.Context, roomID, identity, entryID string) (*Result, error)
	Skip(ctx context.Context, roomID, identity string, observed *Marker) (*Result, error)
	StartQueue(ctx context.Context, roomID, identity string) (*Result, error)
	TrackEnded(ctx context.Context, roomID, identity string, observed Marker) (*Result, error)
	SetPlaying(ctx context.Context, roomID, identity string, playing bool) (*Result, error)

	StartLive(ctx context.Context, roomID, identity string, req LiveRequest) (*Result, *Credential, error)
	StopLive(ctx context.Context, roomID, identity string) (*Result, error)
	TransportCredential(ctx context.Context, roomID, identity string) (*Credential, error)

	Restore(ctx context.Context) error
	Reap(ctx context.Context) ReapStats
	EvictIdle(ctx context.Context, idleFor time.Duration) (int, error)
}

// Options holds the collaborators of the room service.
type Options struct {
	Settings    Settings
	Transport   Transport
	Publisher   Publisher
	Repository  Repository
	Lease       Lease
	Clock       Clock
	OnMutation  MutationObserver
	OnTransport TransportObserver
}

type service struct {
	env   *roomEnv
	repo  Repository
	lease Lease
	log   zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

type discardPublisher struct{}

func (discardPublisher) Publish(*Snapshot) {}

// NewService creates a room service.
func NewService(opts Options, log zerolog.Logger) Service {
	log = log.With().Str("component", "room-service").Logger()

	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = discardPublisher{}
	}
	if opts.Lease == nil {
		opts.Lease = LocalLease()
	}
	if opts.OnMutation == nil {
		opts.OnMutation = func(string, string) {}
	}

	return &service{
		env: &roomEnv{
			settings:  opts.Settings,
			clock:     opts.Clock,
			ctrl:      newController(opts.Transport, opts.Settings.TransportTimeout, opts.OnTransport, log),
			publisher: opts.Publisher,
			observe:   opts.OnMutation,
			log:       log,
		},
		repo:  opts.Repository,
		lease: opts.Lease,
		log:   log,
		rooms: make(map[string]*Room),
	}
}

func (s *service) CreateRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*Snapshot, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errValidation(ctx, "owner identity is required", nil)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		generated, err := idgen.GenerateSecureID("room", 16)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate room id")
		}
		id = generated
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id
	}

	if err := s.lease.Claim(ctx, id); err != nil {
		return nil, errLeaseHeld(ctx, id, err)
	}

	s.mu.Lock()
	if _, exists := s.rooms[id]; exists {
		s.mu.Unlock()
		return nil, domainError(ctx, platformerrors.ErrorTypeConflict, ReasonRoomExists, "room already exists", nil,
			map[string]any{"room_id": id})
	}
	r := newRoom(id, name, ownerID, s.env.clock(), s.env)
	s.rooms[id] = r
	s.mu.Unlock()

	s.env.publisher.Publish(r.snapshot.Load())
	s.env.observe("create_room", OutcomeApplied)
	s.log.Info().Str("room_id", id).Str("owner_id", ownerID).Msg("room created")

	return r.Snapshot(), nil
}

func (s *service) EnsureRoom(ctx context.Context, ownerID string, req CreateRoomRequest) (*Snapshot, bool, error) {
	if snap, err := s.GetSnapshot(ctx, req.ID); err == nil {
		return snap, false, nil
	}
	snap, err := s.CreateRoom(ctx, ownerID, req)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func (s *service) lookup(ctx context.Context, roomID string) (*Room, error) {
	s.mu.RLock()
	r, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return nil, errRoomNotFound(ctx, roomID)
	}
	return r, nil
}

// writable looks the room up and claims its lease for a mutation.
func (s *service) writable(ctx context.Context, roomID string) (*Room, error) {
	r, err := s.lookup(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.lease.Claim(ctx, roomID); err != nil {
		return nil, errLeaseHeld(ctx, roomID, err)
	}
	return r, nil
}

func (s *service) GetSnapshot(ctx context.Context, roomID string) (*Snapshot, error) {
	r, err := s.lookup(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

func (s *service) ListRooms(ctx context.Context) ([]*Snapshot, error) {
	s.mu.RLock()
	snaps := make([]*Snapshot, 0, len(s.rooms))
	for _, r := range s.rooms {
		snaps = append(snaps, r.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAtMs != snaps[j].CreatedAtMs {
			return snaps[i].CreatedAtMs < snaps[j].CreatedAtMs
		}
		return snaps[i].RoomID < snaps[j].RoomID
	})
	return snaps, nil
}

func (s *service) DeleteRoom(ctx context.Context, roomID, identity string) error {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return err
	}
	if err := r.requireOwner(ctx, "delete_room", identity); err != nil {
		return err
	}
	return s.remove(ctx, r)
}

func (s *service) remove(ctx context.Context, r *Room) error {
	if _, err := r.close(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.rooms, r.id)
	s.mu.Unlock()

	if err := s.lease.Release(ctx, r.id); err != nil {
		s.log.Warn().Err(err).Str("room_id", r.id).Msg("failed to release room lease")
	}
	s.log.Info().Str("room_id", r.id).Msg("room deleted")
	return nil
}

func (s *service) Join(ctx context.Context, roomID, identity string, meta presence.Meta) (*Result, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, errValidation(ctx, "identity is required", nil)
	}
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Join(ctx, identity, meta)
}

func (s *service) Heartbeat(ctx context.Context, roomID, identity string) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Heartbeat(ctx, identity)
}

func (s *service) Leave(ctx context.Context, roomID, identity string) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Leave(ctx, identity)
}

func (s *service) ListPresence(ctx context.Context, roomID string) ([]presence.Entry, error) {
	snap, err := s.GetSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return snap.Presence, nil
}

func (s *service) Enqueue(ctx context.Context, roomID, identity string, track queue.Track) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Enqueue(ctx, identity, track)
}

func (s *service) RemoveEntry(ctx context.Context, roomID, identity, entryID string) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Remove(ctx, identity, entryID)
}

func (s *service) Skip(ctx context.Context, roomID, identity string, observed *Marker) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Skip(ctx, identity, observed)
}

func (s *service) StartQueue(ctx context.Context, roomID, identity string) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.StartQueue(ctx, identity)
}

func (s *service) TrackEnded(ctx context.Context, roomID, identity string, observed Marker) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.TrackEnded(ctx, identity, observed)
}

func (s *service) SetPlaying(ctx context.Context, roomID, identity string, playing bool) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.SetPlaying(ctx, identity, playing)
}

func (s *service) StartLive(ctx context.Context, roomID, identity string, req LiveRequest) (*Result, *Credential, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return r.StartLive(ctx, identity, req)
}

func (s *service) StopLive(ctx context.Context, roomID, identity string) (*Result, error) {
	r, err := s.writable(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.StopLive(ctx, identity)
}

func (s *service) TransportCredential(ctx context.Context, roomID, identity string) (*Credential, error) {
	r, err := s.lookup(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.Credential(ctx, identity)
}

func (s *service) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	snaps, err := s.repo.List(ctx)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load rooms")
	}

	restored := 0
	for _, snap := range snaps {
		if snap.Closed {
			continue
		}
		if err := s.lease.Claim(ctx, snap.RoomID); err != nil {
			s.log.Warn().Err(err).Str("room_id", snap.RoomID).Msg("room lease held elsewhere, skipping restore")
			continue
		}

		s.mu.Lock()
		if _, exists := s.rooms[snap.RoomID]; !exists {
			s.rooms[snap.RoomID] = restoreRoom(snap, s.env)
			restored++
		}
		s.mu.Unlock()
	}

	s.log.Info().Int("rooms", restored).Msg("rooms restored")
	return nil
}

func (s *service) all() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

func (s *service) Reap(ctx context.Context) ReapStats {
	rooms := s.all()
	stats := ReapStats{Rooms: len(rooms)}

	for _, r := range rooms {
		if err := s.lease.Claim(ctx, r.id); err != nil {
			s.log.Warn().Err(err).Str("room_id", r.id).Msg("failed to renew room lease")
			stats.Failed++
			continue
		}
		res, err := r.Reap(ctx)
		if err != nil {
			if !IsNotFound(err) {
				s.log.Error().Err(err).Str("room_id", r.id).Msg("reap failed")
				stats.Failed++
			}
			continue
		}
		if res.Applied {
			stats.Changed++
		}
	}
	return stats
}

func (s *service) EvictIdle(ctx context.Context, idleFor time.Duration) (int, error) {
	now := s.env.clock()
	cutoff := now.Add(-idleFor)

	evicted := 0
	for _, r := range s.all() {
		if !r.evictable(now, cutoff) {
			continue
		}
		if err := s.remove(ctx, r); err != nil {
			s.log.Warn().Err(err).Str("room_id", r.id).Msg("failed to evict idle room")
			continue
		}
		evicted++
	}
	return evicted, nil
}
