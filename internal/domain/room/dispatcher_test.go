package room_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/listen-api/internal/domain/room"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []*room.Snapshot
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, snap *room.Snapshot) error {
	s.mu.Lock()
	s.delivered = append(s.delivered, snap)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) versions(roomID string) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uint64
	for _, snap := range s.delivered {
		if snap.RoomID == roomID {
			out = append(out, snap.Version)
		}
	}
	return out
}

func TestDispatcherCoalescesBeforeStart(t *testing.T) {
	sink := &recordingSink{}
	d := room.NewDispatcher(zerolog.Nop(), sink)

	d.Publish(&room.Snapshot{RoomID: "a", Version: 1})
	d.Publish(&room.Snapshot{RoomID: "a", Version: 3})
	d.Publish(&room.Snapshot{RoomID: "a", Version: 2})
	d.Publish(&room.Snapshot{RoomID: "b", Version: 1})

	d.Start(context.Background())
	d.Stop()

	assert.Equal(t, []uint64{3}, sink.versions("a"))
	assert.Equal(t, []uint64{1}, sink.versions("b"))
}

func TestDispatcherDeliversInVersionOrder(t *testing.T) {
	sink := &recordingSink{}
	d := room.NewDispatcher(zerolog.Nop(), sink)
	d.Start(context.Background())

	for v := uint64(1); v <= 50; v++ {
		d.Publish(&room.Snapshot{RoomID: "a", Version: v})
	}

	require.Eventually(t, func() bool {
		got := sink.versions("a")
		return len(got) > 0 && got[len(got)-1] == 50
	}, 2*time.Second, 10*time.Millisecond)
	d.Stop()

	got := sink.versions("a")
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

type repoCalls struct {
	saved   []string
	deleted []string
}

func (r *repoCalls) Save(_ context.Context, snap *room.Snapshot) error {
	r.saved = append(r.saved, snap.RoomID)
	return nil
}

func (r *repoCalls) Delete(_ context.Context, roomID string) error {
	r.deleted = append(r.deleted, roomID)
	return nil
}

func (r *repoCalls) List(context.Context) ([]*room.Snapshot, error) { return nil, nil }

func TestRepositorySink(t *testing.T) {
	repo := &repoCalls{}
	sink := room.RepositorySink(repo)

	require.NoError(t, sink.Deliver(context.Background(), &room.Snapshot{RoomID: "open"}))
	require.NoError(t, sink.Deliver(context.Background(), &room.Snapshot{RoomID: "gone", Closed: true}))

	assert.Equal(t, []string{"open"}, repo.saved)
	assert.Equal(t, []string{"gone"}, repo.deleted)
}
