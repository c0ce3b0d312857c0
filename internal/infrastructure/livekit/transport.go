package livekit

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog"
	"github.com/twitchtv/twirp"

	"jan-server/services/listen-api/internal/config"
	"jan-server/services/listen-api/internal/domain/room"
)

// roomPrefix namespaces relay rooms created for listening rooms.
const roomPrefix = "listen-"

// emptyTimeout lets LiveKit close a relay room nobody joined.
const emptyTimeout = 5 * time.Minute

// RoomService is the subset of the LiveKit room API the transport uses.
type RoomService interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	RemoveParticipant(ctx context.Context, req *livekit.RoomParticipantIdentity) (*livekit.RemoveParticipantResponse, error)
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

// Transport connects room identities to LiveKit by issuing access tokens and
// disconnects them by removing the participant. Issued credentials are cached
// so a retried connect returns the same token while it is still valid.
type Transport struct {
	rooms  RoomService
	tokens *TokenGenerator
	wsURL  string
	ttl    time.Duration
	cache  *lru.Cache
	now    func() time.Time
	log    zerolog.Logger
}

// NewRoomService creates the LiveKit room service client.
func NewRoomService(cfg *config.Config) RoomService {
	return lksdk.NewRoomServiceClient(cfg.LiveKitWsURL, cfg.LiveKitAPIKey, cfg.LiveKitAPISecret)
}

// NewTransport creates the LiveKit transport.
func NewTransport(cfg *config.Config, rooms RoomService, tokens *TokenGenerator, log zerolog.Logger) (*Transport, error) {
	cache, err := lru.New(max(cfg.CredentialCacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("create credential cache: %w", err)
	}
	return &Transport{
		rooms:  rooms,
		tokens: tokens,
		wsURL:  cfg.LiveKitWsURL,
		ttl:    cfg.LiveKitTokenTTL,
		cache:  cache,
		now:    time.Now,
		log:    log.With().Str("component", "livekit-transport").Logger(),
	}, nil
}

// RelayRoom returns the LiveKit room name for a listening room.
func RelayRoom(roomID string) string {
	return roomPrefix + roomID
}

type cacheKey struct {
	roomID   string
	identity string
	role     room.Role
}

func (t *Transport) ConnectAsPublisher(ctx context.Context, roomID, identity, displayName, deviceRef string) (room.Credential, error) {
	if _, err := t.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         RelayRoom(roomID),
		EmptyTimeout: uint32(emptyTimeout.Seconds()),
		Metadata:     roomID,
	}); err != nil {
		return room.Credential{}, fmt.Errorf("create relay room: %w", err)
	}

	cred, err := t.credential(roomID, identity, displayName, room.RolePublisher)
	if err != nil {
		return room.Credential{}, err
	}
	cred.DeviceRef = deviceRef
	t.log.Info().Str("room_id", roomID).Str("identity", identity).Msg("publisher leg issued")
	return cred, nil
}

func (t *Transport) ConnectAsListener(ctx context.Context, roomID, identity, displayName string) (room.Credential, error) {
	if err := ctx.Err(); err != nil {
		return room.Credential{}, err
	}
	return t.credential(roomID, identity, displayName, room.RoleListener)
}

// Disconnect removes identity from the relay room. A participant that is
// already gone counts as disconnected.
func (t *Transport) Disconnect(ctx context.Context, roomID, identity string) error {
	t.cache.Remove(cacheKey{roomID, identity, room.RolePublisher})
	t.cache.Remove(cacheKey{roomID, identity, room.RoleListener})

	_, err := t.rooms.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     RelayRoom(roomID),
		Identity: identity,
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remove participant %s: %w", identity, err)
	}
	return nil
}

// CloseRelay deletes the relay room once a live broadcast ended.
func (t *Transport) CloseRelay(ctx context.Context, roomID string) error {
	_, err := t.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: RelayRoom(roomID)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete relay room: %w", err)
	}
	return nil
}

func (t *Transport) credential(roomID, identity, displayName string, role room.Role) (room.Credential, error) {
	key := cacheKey{roomID, identity, role}
	now := t.now()
	if cached, ok := t.cache.Get(key); ok {
		cred := cached.(room.Credential)
		if cred.ExpiresAt.Sub(now) > t.ttl/2 {
			return cred, nil
		}
	}

	token, err := t.tokens.Generate(RelayRoom(roomID), identity, displayName, role, t.ttl)
	if err != nil {
		return room.Credential{}, fmt.Errorf("generate %s token: %w", role, err)
	}
	cred := room.Credential{
		Identity:    identity,
		DisplayName: displayName,
		Role:        role,
		Token:       token,
		URL:         t.wsURL,
		ExpiresAt:   now.Add(t.ttl),
	}
	t.cache.Add(key, cred)
	return cred, nil
}

func isNotFound(err error) bool {
	var twerr twirp.Error
	return errors.As(err, &twerr) && twerr.Code() == twirp.NotFound
}
