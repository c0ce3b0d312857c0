package reaper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/infrastructure/metrics"
)

type fakeRooms struct {
	reaps atomic.Int32
	stats room.ReapStats
	snaps []*room.Snapshot
}

func (f *fakeRooms) Reap(context.Context) room.ReapStats {
	f.reaps.Add(1)
	return f.stats
}

func (f *fakeRooms) ListRooms(context.Context) ([]*room.Snapshot, error) {
	return f.snaps, nil
}

func TestTick(t *testing.T) {
	rooms := &fakeRooms{
		stats: room.ReapStats{Rooms: 2, Changed: 1},
		snaps: []*room.Snapshot{
			{RoomID: "a", Mode: room.ModeIdle},
			{RoomID: "b", Mode: room.ModeLiveBroadcast},
		},
	}
	r := New(rooms, nil, time.Second, zerolog.Nop())

	before := testutil.ToFloat64(metrics.ReapedRooms)
	require.NoError(t, r.Tick(context.Background()))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReapedRooms))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ActiveRooms))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RoomsByMode.WithLabelValues(string(room.ModeLiveBroadcast))))
}

func TestTick_ReportsFailures(t *testing.T) {
	rooms := &fakeRooms{stats: room.ReapStats{Rooms: 3, Failed: 1}}
	r := New(rooms, nil, time.Second, zerolog.Nop())

	err := r.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
}

func TestStartStop(t *testing.T) {
	rooms := &fakeRooms{}
	r := New(rooms, nil, 5*time.Millisecond, zerolog.Nop())

	r.Start(context.Background())
	r.Start(context.Background())
	require.Eventually(t, func() bool { return rooms.reaps.Load() >= 2 }, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
	n := rooms.reaps.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rooms.reaps.Load())
}
