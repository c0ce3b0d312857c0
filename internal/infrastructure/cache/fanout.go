package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"jan-server/services/listen-api/internal/domain/room"
)

type envelope struct {
	Origin   string         `json:"origin"`
	Snapshot *room.Snapshot `json:"snapshot"`
}

// SnapshotBus relays room snapshots between instances over Redis Pub/Sub.
// Every message carries the publishing instance so it can skip its own.
type SnapshotBus struct {
	redis  *Redis
	origin string
}

// NewSnapshotBus creates a bus identified by origin.
func NewSnapshotBus(r *Redis, origin string) *SnapshotBus {
	return &SnapshotBus{redis: r, origin: origin}
}

// Channel returns the channel of a room.
func (b *SnapshotBus) Channel(roomID string) string {
	return b.redis.key("room", roomID)
}

// Name implements room.Sink.
func (b *SnapshotBus) Name() string { return "redis" }

// Deliver implements room.Sink by publishing snap on the room channel.
func (b *SnapshotBus) Deliver(ctx context.Context, snap *room.Snapshot) error {
	payload, err := json.Marshal(envelope{Origin: b.origin, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return b.redis.client.Publish(ctx, b.Channel(snap.RoomID), payload).Err()
}

// Subscribe calls handle for every snapshot published by other instances
// until ctx is done.
func (b *SnapshotBus) Subscribe(ctx context.Context, handle func(*room.Snapshot)) error {
	pubsub := b.redis.client.PSubscribe(ctx, b.Channel("*"))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to room snapshots: %w", err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.dispatch(msg, handle)
		}
	}
}

func (b *SnapshotBus) dispatch(msg *redis.Message, handle func(*room.Snapshot)) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Snapshot == nil {
		b.redis.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed snapshot message")
		return
	}
	if env.Origin == b.origin {
		return
	}
	if !strings.HasSuffix(msg.Channel, ":"+env.Snapshot.RoomID) {
		return
	}
	handle(env.Snapshot)
}
