package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/room"
)

func TestRecordMutationCountsStaleAndRollbacks(t *testing.T) {
	staleBefore := testutil.ToFloat64(StaleSignals)
	rollbacksBefore := testutil.ToFloat64(TransportRollbacks)

	RecordMutation("track_ended", room.OutcomeStale)
	RecordMutation("start_live", room.OutcomeFailed)
	RecordMutation("enqueue", room.OutcomeApplied)

	assert.Equal(t, staleBefore+1, testutil.ToFloat64(StaleSignals))
	assert.Equal(t, rollbacksBefore+1, testutil.ToFloat64(TransportRollbacks))
	assert.GreaterOrEqual(t, testutil.ToFloat64(Mutations.WithLabelValues("enqueue", room.OutcomeApplied)), 1.0)
}

func TestRecordTransportCall(t *testing.T) {
	RecordTransportCall("disconnect", errors.New("boom"), 20*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(TransportCalls, "listen_transport_call_duration_seconds"))
}

func TestRecordRooms(t *testing.T) {
	RecordRooms([]*room.Snapshot{
		{Mode: room.ModeIdle},
		{Mode: room.ModeLiveBroadcast, Presence: []presence.Entry{{Identity: "a"}, {Identity: "b"}}},
		{Mode: room.ModeLiveBroadcast},
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(ActiveRooms))
	assert.Equal(t, 2.0, testutil.ToFloat64(PresentListeners))
	assert.Equal(t, 2.0, testutil.ToFloat64(RoomsByMode.WithLabelValues(string(room.ModeLiveBroadcast))))
	assert.Equal(t, 0.0, testutil.ToFloat64(RoomsByMode.WithLabelValues(string(room.ModeQueuedPlayback))))
}
