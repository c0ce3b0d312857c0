package livekit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twitchtv/twirp"

	"jan-server/services/listen-api/internal/config"
	"jan-server/services/listen-api/internal/domain/room"
)

const testSecret = "secret-secret-secret-secret-secret"

type fakeRoomService struct {
	mu        sync.Mutex
	created   []string
	removed   []string
	deleted   []string
	removeErr error
}

func (f *fakeRoomService) DeleteRoom(_ context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, req.Room)
	return &livekit.DeleteRoomResponse{}, nil
}

func (f *fakeRoomService) CreateRoom(_ context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req.Name)
	return &livekit.Room{Name: req.Name}, nil
}

func (f *fakeRoomService) RemoveParticipant(_ context.Context, req *livekit.RoomParticipantIdentity) (*livekit.RemoveParticipantResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, req.Room+"/"+req.Identity)
	return &livekit.RemoveParticipantResponse{}, f.removeErr
}

func newTestTransport(t *testing.T, rooms RoomService) *Transport {
	t.Helper()
	cfg := &config.Config{
		LiveKitWsURL:        "wss://relay.example",
		LiveKitAPIKey:       "key",
		LiveKitAPISecret:    testSecret,
		LiveKitTokenTTL:     time.Hour,
		CredentialCacheSize: 16,
	}
	tr, err := NewTransport(cfg, rooms, NewTokenGenerator(cfg), zerolog.Nop())
	require.NoError(t, err)
	return tr
}

func videoGrant(t *testing.T, token string) map[string]any {
	t.Helper()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	video, ok := claims["video"].(map[string]any)
	require.True(t, ok, "token carries a video grant")
	return video
}

func TestPublisherLegCreatesRelayRoom(t *testing.T) {
	rooms := &fakeRoomService{}
	tr := newTestTransport(t, rooms)

	cred, err := tr.ConnectAsPublisher(context.Background(), "r1", "owner", "Owner", "mic-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"listen-r1"}, rooms.created)
	assert.Equal(t, room.RolePublisher, cred.Role)
	assert.Equal(t, "wss://relay.example", cred.URL)
	assert.Equal(t, "mic-1", cred.DeviceRef)

	grant := videoGrant(t, cred.Token)
	assert.Equal(t, "listen-r1", grant["room"])
	assert.Equal(t, true, grant["canPublish"])
}

func TestListenerLegCannotPublish(t *testing.T) {
	tr := newTestTransport(t, &fakeRoomService{})

	cred, err := tr.ConnectAsListener(context.Background(), "r1", "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, room.RoleListener, cred.Role)

	grant := videoGrant(t, cred.Token)
	assert.Equal(t, false, grant["canPublish"])
	assert.Equal(t, true, grant["canSubscribe"])
}

func TestCredentialsAreCachedUntilDisconnect(t *testing.T) {
	tr := newTestTransport(t, &fakeRoomService{})
	ctx := context.Background()

	first, err := tr.ConnectAsListener(ctx, "r1", "bob", "Bob")
	require.NoError(t, err)
	second, err := tr.ConnectAsListener(ctx, "r1", "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, first.Token, second.Token)

	require.NoError(t, tr.Disconnect(ctx, "r1", "bob"))
	tr.now = func() time.Time { return time.Now().Add(time.Second) }
	third, err := tr.ConnectAsListener(ctx, "r1", "bob", "Bob")
	require.NoError(t, err)
	assert.True(t, third.ExpiresAt.After(first.ExpiresAt), "a fresh credential is issued after disconnect")
}

func TestDisconnectTreatsMissingParticipantAsGone(t *testing.T) {
	rooms := &fakeRoomService{removeErr: twirp.NotFoundError("participant not found")}
	tr := newTestTransport(t, rooms)

	require.NoError(t, tr.Disconnect(context.Background(), "r1", "bob"))
	assert.Equal(t, []string{"listen-r1/bob"}, rooms.removed)

	rooms.removeErr = errors.New("connection refused")
	assert.Error(t, tr.Disconnect(context.Background(), "r1", "bob"))
}

func TestCloseRelayDeletesRoom(t *testing.T) {
	rooms := &fakeRoomService{}
	tr := newTestTransport(t, rooms)

	require.NoError(t, tr.CloseRelay(context.Background(), "r1"))
	assert.Equal(t, []string{"listen-r1"}, rooms.deleted)
}
