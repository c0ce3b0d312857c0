package playback_test

import (
	"testing"
	"time"

	"jan-server/services/listen-api/internal/domain/playback"
	"jan-server/services/listen-api/internal/domain/room"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func queuedSnapshot(startedAt time.Time, duration float64, playing bool) *room.Snapshot {
	return &room.Snapshot{
		RoomID: "r1",
		Mode:   room.ModeQueuedPlayback,
		CurrentTrack: &room.CurrentTrack{
			EntryID:          "qe_1",
			Title:            "Song",
			DurationSeconds:  duration,
			StartedAtEpochMs: startedAt.UnixMilli(),
		},
		IsPlaying: playing,
		Version:   2,
	}
}

func TestComputeTarget(t *testing.T) {
	paused := queuedSnapshot(t0, 200, false)
	paused.CurrentTrack.PausedAtEpochMs = t0.Add(30 * time.Second).UnixMilli()

	tests := []struct {
		name        string
		snap        *room.Snapshot
		now         time.Time
		wantElapsed float64
		wantPlay    bool
	}{
		{"idle", &room.Snapshot{Mode: room.ModeIdle}, t0, 0, false},
		{"live", &room.Snapshot{Mode: room.ModeLiveBroadcast, LiveStream: &room.LiveStream{Title: "x"}}, t0, 0, false},
		{"mid track", queuedSnapshot(t0, 200, true), t0.Add(47 * time.Second), 47, true},
		{"clock behind start", queuedSnapshot(t0, 200, true), t0.Add(-2 * time.Second), 0, true},
		{"past end", queuedSnapshot(t0, 200, true), t0.Add(500 * time.Second), 200, true},
		{"paused freezes", paused, t0.Add(90 * time.Second), 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := playback.ComputeTarget(tt.snap, tt.now)
			if got.Mode != tt.snap.Mode {
				t.Errorf("mode = %s, want %s", got.Mode, tt.snap.Mode)
			}
			if got.ElapsedSeconds != tt.wantElapsed {
				t.Errorf("elapsed = %v, want %v", got.ElapsedSeconds, tt.wantElapsed)
			}
			if got.ShouldPlay != tt.wantPlay {
				t.Errorf("shouldPlay = %v, want %v", got.ShouldPlay, tt.wantPlay)
			}
		})
	}
}

func TestReconcileDriftBoundary(t *testing.T) {
	target := playback.ComputeTarget(queuedSnapshot(t0, 200, true), t0.Add(10*time.Second))

	tests := []struct {
		actual   float64
		wantSeek bool
	}{
		{10, false},
		{7.5, false},
		{6.9, false},
		{6.0, true},
		{12.9, false},
		{14.0, true},
		{0, true},
	}
	for _, tt := range tests {
		d := playback.Reconcile(target, tt.actual, true, playback.DefaultDriftThreshold)
		if d.Seek != tt.wantSeek {
			t.Errorf("actual %.1f: seek = %v, want %v", tt.actual, d.Seek, tt.wantSeek)
		}
		if d.Seek && d.SeekTo != 10 {
			t.Errorf("actual %.1f: seek to %v, want 10", tt.actual, d.SeekTo)
		}
		if d.Play || d.Pause {
			t.Errorf("actual %.1f: unexpected play/pause change %+v", tt.actual, d)
		}
	}
}

func TestReconcilePausesRegardlessOfDrift(t *testing.T) {
	snap := queuedSnapshot(t0, 200, false)
	snap.CurrentTrack.PausedAtEpochMs = t0.Add(10 * time.Second).UnixMilli()
	target := playback.ComputeTarget(snap, t0.Add(time.Minute))

	d := playback.Reconcile(target, 9.5, true, playback.DefaultDriftThreshold)
	if !d.Pause || d.Play {
		t.Fatalf("expected pause, got %+v", d)
	}

	d = playback.Reconcile(target, 9.5, false, playback.DefaultDriftThreshold)
	if d.Pause || d.Play || d.Seek {
		t.Fatalf("already paused in place, got %+v", d)
	}
}

func TestReconcileOutsideQueuedPlayback(t *testing.T) {
	target := playback.ComputeTarget(&room.Snapshot{Mode: room.ModeLiveBroadcast}, t0)
	d := playback.Reconcile(target, 42, true, playback.DefaultDriftThreshold)
	if !d.Pause || d.Seek {
		t.Fatalf("live mode must stop local playback without seeking, got %+v", d)
	}
}

func TestTransportStep(t *testing.T) {
	tests := []struct {
		prev, next room.Mode
		want       playback.LegStep
	}{
		{room.ModeIdle, room.ModeLiveBroadcast, playback.LegConnect},
		{room.ModeQueuedPlayback, room.ModeLiveBroadcast, playback.LegConnect},
		{room.ModeLiveBroadcast, room.ModeIdle, playback.LegDisconnect},
		{room.ModeLiveBroadcast, room.ModeLiveBroadcast, playback.LegKeep},
		{room.ModeIdle, room.ModeQueuedPlayback, playback.LegKeep},
	}
	for _, tt := range tests {
		if got := playback.TransportStep(tt.prev, tt.next); got != tt.want {
			t.Errorf("%s -> %s: got %s, want %s", tt.prev, tt.next, got, tt.want)
		}
	}
}

func TestLegChange(t *testing.T) {
	live := func(epoch uint64) *room.Snapshot {
		return &room.Snapshot{Mode: room.ModeLiveBroadcast, LiveStream: &room.LiveStream{LegEpoch: epoch}}
	}
	tests := []struct {
		name      string
		prevMode  room.Mode
		prevEpoch uint64
		snap      *room.Snapshot
		want      playback.LegStep
	}{
		{"going live", room.ModeIdle, 0, live(0), playback.LegConnect},
		{"same epoch", room.ModeLiveBroadcast, 0, live(0), playback.LegKeep},
		{"reissued", room.ModeLiveBroadcast, 0, live(1), playback.LegReconnect},
		{"leaving live", room.ModeLiveBroadcast, 1, &room.Snapshot{Mode: room.ModeIdle}, playback.LegDisconnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := playback.LegChange(tt.prevMode, tt.prevEpoch, tt.snap); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
