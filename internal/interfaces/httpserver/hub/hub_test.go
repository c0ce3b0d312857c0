package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/listen-api/internal/domain/room"
)

func startHub(t *testing.T, initial *room.Snapshot) (*Hub, *websocket.Conn) {
	t.Helper()
	h := New(time.Second, time.Minute, zerolog.Nop())

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(conn, "room-1", "listener-1", initial)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return h.Clients("room-1") == 1 }, time.Second, 5*time.Millisecond)
	return h, conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) *room.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return &snap
}

func TestHub_DeliversEachVersionOnce(t *testing.T) {
	h, conn := startHub(t, &room.Snapshot{RoomID: "room-1", Version: 1})

	assert.Equal(t, uint64(1), readSnapshot(t, conn).Version)

	h.Broadcast(&room.Snapshot{RoomID: "room-1", Version: 2})
	h.Broadcast(&room.Snapshot{RoomID: "room-1", Version: 2})
	h.Broadcast(&room.Snapshot{RoomID: "room-1", Version: 1})
	h.Broadcast(&room.Snapshot{RoomID: "other", Version: 9})
	h.Broadcast(&room.Snapshot{RoomID: "room-1", Version: 3})

	assert.Equal(t, uint64(2), readSnapshot(t, conn).Version)
	assert.Equal(t, uint64(3), readSnapshot(t, conn).Version)
}

func TestHub_StampsServerTime(t *testing.T) {
	h, conn := startHub(t, nil)
	h.clock = func() time.Time { return time.UnixMilli(42_000) }

	h.Broadcast(&room.Snapshot{RoomID: "room-1", Version: 1, ServerTimeMs: 1})

	assert.Equal(t, int64(42_000), readSnapshot(t, conn).ServerTimeMs)
}

func TestHub_ClosedRoomDisconnects(t *testing.T) {
	h, conn := startHub(t, &room.Snapshot{RoomID: "room-1", Version: 1})
	readSnapshot(t, conn)

	h.Broadcast(&room.Snapshot{RoomID: "room-1", Version: 2, Closed: true})

	snap := readSnapshot(t, conn)
	assert.True(t, snap.Closed)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Eventually(t, func() bool { return h.Clients("room-1") == 0 }, time.Second, 5*time.Millisecond)
}
