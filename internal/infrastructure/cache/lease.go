package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
)

// RoomLease is a room.Lease backed by one redsync mutex per room. A held
// lease is extended once less than half of its TTL is left.
type RoomLease struct {
	redis *Redis
	ttl   time.Duration

	mu      sync.Mutex
	mutexes map[string]*redsync.Mutex
}

// NewRoomLease creates a lease manager with the given TTL.
func NewRoomLease(r *Redis, ttl time.Duration) *RoomLease {
	return &RoomLease{
		redis:   r,
		ttl:     ttl,
		mutexes: make(map[string]*redsync.Mutex),
	}
}

// Claim acquires or extends the lease of roomID.
func (l *RoomLease) Claim(ctx context.Context, roomID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.mutexes[roomID]; ok {
		remaining := time.Until(m.Until())
		if remaining > l.ttl/2 {
			return nil
		}
		if remaining > 0 {
			if extended, err := m.ExtendContext(ctx); err == nil && extended {
				return nil
			}
		}
		delete(l.mutexes, roomID)
	}

	m := l.redis.rs.NewMutex(l.redis.key("lease", roomID), redsync.WithExpiry(l.ttl), redsync.WithTries(1))
	if err := m.TryLockContext(ctx); err != nil {
		return fmt.Errorf("claim lease of room %s: %w", roomID, err)
	}
	l.mutexes[roomID] = m
	l.redis.log.Debug().Str("room_id", roomID).Msg("room lease acquired")
	return nil
}

// Release gives the lease of roomID up.
func (l *RoomLease) Release(ctx context.Context, roomID string) error {
	l.mu.Lock()
	m, ok := l.mutexes[roomID]
	delete(l.mutexes, roomID)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if _, err := m.UnlockContext(ctx); err != nil {
		return fmt.Errorf("release lease of room %s: %w", roomID, err)
	}
	return nil
}

// ReleaseAll gives up every held lease, used on shutdown.
func (l *RoomLease) ReleaseAll(ctx context.Context) {
	l.mu.Lock()
	ids := make([]string, 0, len(l.mutexes))
	for id := range l.mutexes {
		ids = append(ids, id)
	}
	l.mu.Unlock()

	for _, id := range ids {
		if err := l.Release(ctx, id); err != nil {
			l.redis.log.Warn().Err(err).Str("room_id", id).Msg("failed to release room lease")
		}
	}
}
