package playback_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/playback"
	"jan-server/services/listen-api/internal/domain/room"
)

type fakePlayer struct {
	loaded   string
	position float64
	playing  bool
	seeks    []float64
}

func (p *fakePlayer) Load(track room.CurrentTrack) error {
	p.loaded = track.EntryID
	p.position = 0
	p.playing = false
	return nil
}

func (p *fakePlayer) Unload() {
	p.loaded = ""
	p.playing = false
}

func (p *fakePlayer) Position() float64 { return p.position }
func (p *fakePlayer) Playing() bool     { return p.playing }
func (p *fakePlayer) Play()             { p.playing = true }
func (p *fakePlayer) Pause()            { p.playing = false }

func (p *fakePlayer) SeekTo(seconds float64) {
	p.position = seconds
	p.seeks = append(p.seeks, seconds)
}

type fakeLeg struct {
	role      room.Role
	token     string
	connected bool
	failNext  bool
	connects  int
}

func (l *fakeLeg) Connect(_ context.Context, cred *room.Credential) error {
	if l.failNext {
		l.failNext = false
		return errors.New("relay refused")
	}
	l.role = cred.Role
	l.token = cred.Token
	l.connected = true
	l.connects++
	return nil
}

func (l *fakeLeg) Disconnect(context.Context) error {
	l.connected = false
	return nil
}

func stamped(snap *room.Snapshot, serverNow time.Time, version uint64) *room.Snapshot {
	out := *snap
	out.ServerTimeMs = serverNow.UnixMilli()
	out.Version = version
	return &out
}

func TestFollowerJoinsMidTrack(t *testing.T) {
	player := &fakePlayer{}
	local := t0.Add(47 * time.Second)
	f := playback.NewFollower(player, nil, playback.FollowerConfig{Clock: func() time.Time { return local }}, zerolog.Nop())

	acts, err := f.Apply(context.Background(), stamped(queuedSnapshot(t0, 200, true), local, 2))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if player.loaded != "qe_1" || !player.playing {
		t.Fatalf("player not started: %+v", player)
	}
	if len(player.seeks) != 1 || player.seeks[0] != 47 {
		t.Fatalf("expected a single seek to 47s, got %v", player.seeks)
	}
	if acts.Loaded != "Song" || !acts.Seeked || !acts.Played {
		t.Fatalf("unexpected actions %s", acts)
	}
	if m := f.Marker(); m == nil || m.EntryID != "qe_1" {
		t.Fatalf("marker not tracked: %+v", m)
	}
}

func TestFollowerUsesServerClockOffset(t *testing.T) {
	player := &fakePlayer{}
	local := t0.Add(10 * time.Second)
	serverNow := local.Add(20 * time.Second)
	f := playback.NewFollower(player, nil, playback.FollowerConfig{Clock: func() time.Time { return local }}, zerolog.Nop())

	if _, err := f.Apply(context.Background(), stamped(queuedSnapshot(t0, 200, true), serverNow, 2)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := player.seeks; len(got) != 1 || got[0] != 30 {
		t.Fatalf("seek should follow the server clock, got %v", got)
	}
	if !f.ServerNow().Equal(serverNow) {
		t.Errorf("server now = %v, want %v", f.ServerNow(), serverNow)
	}
}

func TestFollowerIgnoresSmallDrift(t *testing.T) {
	player := &fakePlayer{}
	now := t0.Add(10 * time.Second)
	f := playback.NewFollower(player, nil, playback.FollowerConfig{Clock: func() time.Time { return now }}, zerolog.Nop())
	snap := queuedSnapshot(t0, 200, true)

	if _, err := f.Apply(context.Background(), stamped(snap, now, 2)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	player.position = 7.2

	acts, err := f.Apply(context.Background(), stamped(snap, now, 2))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !acts.Empty() {
		t.Fatalf("sub-threshold drift should leave playback alone, got %s", acts)
	}
}

func TestFollowerIgnoresOlderVersions(t *testing.T) {
	player := &fakePlayer{}
	f := playback.NewFollower(player, nil, playback.FollowerConfig{Clock: func() time.Time { return t0 }}, zerolog.Nop())

	if _, err := f.Apply(context.Background(), stamped(&room.Snapshot{Mode: room.ModeIdle}, t0, 5)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	acts, err := f.Apply(context.Background(), stamped(queuedSnapshot(t0, 200, true), t0, 4))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !acts.Empty() || player.loaded != "" {
		t.Fatalf("stale snapshot applied: %s", acts)
	}
}

func TestFollowerLiveLeg(t *testing.T) {
	player := &fakePlayer{}
	leg := &fakeLeg{failNext: true}
	fetched := 0
	cfg := playback.FollowerConfig{
		Clock: func() time.Time { return t0 },
		Credentials: func(_ context.Context, roomID string) (*room.Credential, error) {
			fetched++
			return &room.Credential{Identity: "bob", Role: room.RoleListener, Token: "tok"}, nil
		},
	}
	f := playback.NewFollower(player, leg, cfg, zerolog.Nop())
	ctx := context.Background()

	if _, err := f.Apply(ctx, stamped(queuedSnapshot(t0, 200, true), t0, 2)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	live := &room.Snapshot{RoomID: "r1", Mode: room.ModeLiveBroadcast, LiveStream: &room.LiveStream{Title: "Live"}}
	if _, err := f.Apply(ctx, stamped(live, t0, 3)); err == nil {
		t.Fatal("expected connect failure")
	}
	acts, err := f.Apply(ctx, stamped(live, t0, 3))
	if err != nil {
		t.Fatalf("retry apply: %v", err)
	}
	if acts.Leg != playback.LegConnect || !leg.connected || leg.role != room.RoleListener {
		t.Fatalf("leg not connected on retry: %s %+v", acts, leg)
	}
	if player.loaded != "" || player.playing {
		t.Fatalf("queued track must stop while live: %+v", player)
	}
	if fetched != 2 {
		t.Errorf("credential fetched %d times, want 2", fetched)
	}

	acts, err = f.Apply(ctx, stamped(&room.Snapshot{RoomID: "r1", Mode: room.ModeIdle}, t0, 4))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if acts.Leg != playback.LegDisconnect || leg.connected {
		t.Fatalf("leg not closed after live: %s", acts)
	}
}

func TestFollowerReconnectsReissuedLeg(t *testing.T) {
	leg := &fakeLeg{}
	token := "sub-1"
	cfg := playback.FollowerConfig{
		Clock: func() time.Time { return t0 },
		Credentials: func(context.Context, string) (*room.Credential, error) {
			return &room.Credential{Identity: "bob", Role: room.RoleListener, Token: token}, nil
		},
	}
	f := playback.NewFollower(&fakePlayer{}, leg, cfg, zerolog.Nop())
	ctx := context.Background()

	live := &room.Snapshot{RoomID: "r1", Mode: room.ModeLiveBroadcast, LiveStream: &room.LiveStream{Title: "Live"}}
	if _, err := f.Apply(ctx, stamped(live, t0, 3)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// A failed stop on the server reissued the leg under a new epoch.
	token = "sub-2"
	reissued := *live
	reissued.LiveStream = &room.LiveStream{Title: "Live", LegEpoch: 1}
	acts, err := f.Apply(ctx, stamped(&reissued, t0, 4))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if acts.Leg != playback.LegReconnect || !leg.connected || leg.token != "sub-2" {
		t.Fatalf("leg not reconnected: %s %+v", acts, leg)
	}

	acts, err = f.Apply(ctx, stamped(&reissued, t0, 4))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if acts.Leg != playback.LegKeep || leg.connects != 2 {
		t.Fatalf("same epoch must keep the leg: %s, %d connects", acts, leg.connects)
	}
}

func TestFollowerUsesRoomDriftThreshold(t *testing.T) {
	player := &fakePlayer{}
	f := playback.NewFollower(player, nil, playback.FollowerConfig{Clock: func() time.Time { return t0 }}, zerolog.Nop())
	ctx := context.Background()

	snap := queuedSnapshot(t0.Add(-20*time.Second), 200, true)
	snap.DriftThresholdMs = 5000
	if _, err := f.Apply(ctx, stamped(snap, t0, 2)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	player.position = 16
	acts, err := f.Apply(ctx, stamped(snap, t0, 2))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if acts.Seeked {
		t.Fatalf("4s drift is within the room's 5s threshold: %s", acts)
	}

	override := playback.NewFollower(player, nil, playback.FollowerConfig{
		Clock:     func() time.Time { return t0 },
		Threshold: 2 * time.Second,
	}, zerolog.Nop())
	if _, err := override.Apply(ctx, stamped(snap, t0, 2)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	player.position = 16
	acts, err = override.Apply(ctx, stamped(snap, t0, 2))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !acts.Seeked {
		t.Fatalf("client threshold must override the room's: %s", acts)
	}
}
