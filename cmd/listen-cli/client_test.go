package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/listen-api/internal/domain/room"
	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
	"jan-server/services/listen-api/internal/interfaces/httpserver/responses"
	roomres "jan-server/services/listen-api/internal/interfaces/httpserver/responses/room"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *apiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newAPIClient(clientOptions{BaseURL: srv.URL + "/", UserID: "alice", UserName: "Alice", Timeout: 2 * time.Second})
}

func TestClientSendsIdentityHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/rooms/r1/queue/start", r.URL.Path)
		assert.Equal(t, "alice", r.Header.Get("X-User-ID"))
		assert.Equal(t, "Alice", r.Header.Get("X-User-Name"))
		_ = json.NewEncoder(w).Encode(roomres.MutationResponse{
			Applied:  true,
			Snapshot: &room.Snapshot{RoomID: "r1", Mode: room.ModeQueuedPlayback, Version: 3},
		})
	})

	resp, err := client.StartQueue(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.Equal(t, uint64(3), resp.Snapshot.Version)
}

func TestClientDecodesErrorResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(responses.ErrorResponse{Error: &responses.ErrorDetail{
			Message:   "audio relay unavailable",
			Type:      "service_unavailable",
			Reason:    "transport_unavailable",
			Retryable: true,
		}})
	})

	_, err := client.StartLive(context.Background(), "r1", roomreq.StartLiveRequest{Title: "set"})
	require.Error(t, err)

	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "transport_unavailable", apiErr.Detail.Reason)
	assert.True(t, apiErr.Detail.Retryable)
	assert.Contains(t, err.Error(), "(retryable)")
}

func TestClientEscapesPathParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rooms/r1/queue/e%201", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(roomres.MutationResponse{Applied: true, Snapshot: &room.Snapshot{RoomID: "r1"}})
	})

	_, err := client.RemoveEntry(context.Background(), "r1", "e 1")
	require.NoError(t, err)
}

func TestSkipRequestPinsCurrentTrack(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rooms/r1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(room.Snapshot{
			RoomID:       "r1",
			Mode:         room.ModeQueuedPlayback,
			CurrentTrack: &room.CurrentTrack{EntryID: "e1", StartedAtEpochMs: 1760700000000},
		})
	})
	t.Cleanup(func() { skipForce, skipEntryID, skipStartedAt = false, "", 0 })

	req, err := skipRequest(context.Background(), client, "r1")
	require.NoError(t, err)
	assert.Equal(t, roomreq.SkipRequest{EntryID: "e1", StartedAtEpochMs: 1760700000000}, req)

	skipForce = true
	req, err = skipRequest(context.Background(), client, "r1")
	require.NoError(t, err)
	assert.Nil(t, req.Marker())
}

func TestSkipRequestNeedsPlayingTrack(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(room.Snapshot{RoomID: "r1", Mode: room.ModeIdle})
	})

	_, err := skipRequest(context.Background(), client, "r1")
	assert.ErrorContains(t, err, "nothing is playing")
}

func TestClientTransportCredential(t *testing.T) {
	expires := time.Unix(1760700000, 0)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(roomres.CredentialResponse{
			Identity:  "alice",
			Role:      room.RoleListener,
			Token:     "tok",
			URL:       "wss://relay",
			ExpiresAt: expires.Unix(),
		})
	})

	cred, err := client.TransportCredential(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, room.RoleListener, cred.Role)
	assert.True(t, cred.ExpiresAt.Equal(expires))
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8190", "ws://localhost:8190/v1/rooms/a%2Fb/ws"},
		{"https://listen.example.com/", "wss://listen.example.com/v1/rooms/a%2Fb/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			client := newAPIClient(clientOptions{BaseURL: tt.base})
			assert.Equal(t, tt.want, client.socketURL("a/b"))
		})
	}
}

func TestBuildSchema(t *testing.T) {
	schema, err := buildSchema("snapshot")
	require.NoError(t, err)
	assert.Equal(t, "Room snapshot", schema.Title)

	_, ok := schema.Properties.Get("current_track")
	assert.True(t, ok)

	_, err = buildSchema("nope")
	assert.Error(t, err)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", formatClock(-time.Second))
	assert.Equal(t, "3:32", formatClock(212*time.Second))
	assert.Equal(t, "61:01", formatClock(time.Hour+61*time.Second))
}
