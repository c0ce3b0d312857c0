package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/listen-api/internal/domain/room"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisWithClient(client, "listen", zerolog.Nop())
}

func TestBuildUniversalOptions(t *testing.T) {
	opts, err := buildUniversalOptions("redis://:secret@cache-a:6379/2, cache-b:6380")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache-a:6379", "cache-b:6380"}, opts.Addrs)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = buildUniversalOptions(" , ")
	assert.Error(t, err)
}

func TestSnapshotBus_RelaysOtherInstances(t *testing.T) {
	_, r := newTestRedis(t)
	local := NewSnapshotBus(r, "instance-a")
	remote := NewSnapshotBus(r, "instance-b")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []*room.Snapshot
	)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = local.Subscribe(ctx, func(snap *room.Snapshot) {
			mu.Lock()
			received = append(received, snap)
			mu.Unlock()
		})
	}()
	<-ready

	// Wait for the subscription to be registered before publishing.
	require.Eventually(t, func() bool {
		n, err := r.Client().PubSubNumPat(ctx).Result()
		return err == nil && n > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, local.Deliver(ctx, &room.Snapshot{RoomID: "room-1", Version: 1}))
	require.NoError(t, remote.Deliver(ctx, &room.Snapshot{RoomID: "room-1", Version: 2}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(2), received[0].Version)
	assert.Equal(t, "listen:room:room-1", local.Channel("room-1"))
}

func TestRoomLease(t *testing.T) {
	mr, r := newTestRedis(t)
	ctx := context.Background()

	first := NewRoomLease(r, 10*time.Second)
	second := NewRoomLease(r, 10*time.Second)

	require.NoError(t, first.Claim(ctx, "room-1"))
	require.NoError(t, first.Claim(ctx, "room-1"), "claiming a held lease again succeeds")
	assert.Error(t, second.Claim(ctx, "room-1"))
	assert.True(t, mr.Exists("listen:lease:room-1"))

	require.NoError(t, first.Release(ctx, "room-1"))
	require.NoError(t, second.Claim(ctx, "room-1"))

	second.ReleaseAll(ctx)
	assert.False(t, mr.Exists("listen:lease:room-1"))
}

func TestRoomLease_ReclaimsAfterExpiry(t *testing.T) {
	mr, r := newTestRedis(t)
	ctx := context.Background()

	first := NewRoomLease(r, 2*time.Second)
	second := NewRoomLease(r, 2*time.Second)

	require.NoError(t, first.Claim(ctx, "room-1"))
	mr.FastForward(3 * time.Second)

	require.NoError(t, second.Claim(ctx, "room-1"))
}

func TestWithLock(t *testing.T) {
	_, r := newTestRedis(t)
	ctx := context.Background()

	ran, err := r.WithLock(ctx, "janitor", time.Minute, func(ctx context.Context) error {
		inner, err := r.WithLock(ctx, "janitor", time.Minute, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		assert.False(t, inner)
		return err
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
