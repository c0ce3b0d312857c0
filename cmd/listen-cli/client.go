package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"jan-server/services/listen-api/internal/domain/room"
	roomreq "jan-server/services/listen-api/internal/interfaces/httpserver/requests/room"
	"jan-server/services/listen-api/internal/interfaces/httpserver/responses"
	roomres "jan-server/services/listen-api/internal/interfaces/httpserver/responses/room"
)

type clientOptions struct {
	BaseURL  string
	UserID   string
	UserName string
	Token    string
	Timeout  time.Duration
}

// apiClient calls the listen-api v1 endpoints.
type apiClient struct {
	baseURL    string
	headers    http.Header
	httpClient *resty.Client
}

// apiError is a decoded error response.
type apiError struct {
	Status int
	Detail responses.ErrorDetail
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("listen-api error (%d): %s", e.Status, e.Detail.Message)
	if e.Detail.Reason != "" {
		msg += " [" + e.Detail.Reason + "]"
	}
	if e.Detail.Retryable {
		msg += " (retryable)"
	}
	return msg
}

func newAPIClient(opts clientOptions) *apiClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	headers := http.Header{}
	if opts.UserID != "" {
		headers.Set("X-User-ID", opts.UserID)
	}
	if opts.UserName != "" {
		headers.Set("X-User-Name", opts.UserName)
	}
	if opts.Token != "" {
		headers.Set("Authorization", "Bearer "+opts.Token)
	}

	httpClient := resty.New().
		SetBaseURL(baseURL+"/v1").
		SetHeader("User-Agent", "listen-cli/"+version).
		SetTimeout(opts.Timeout)
	for key := range headers {
		httpClient.SetHeader(key, headers.Get(key))
	}

	return &apiClient{
		baseURL:    baseURL,
		headers:    headers,
		httpClient: httpClient,
	}
}

// socketURL returns the websocket URL of a room.
func (c *apiClient) socketURL(roomID string) string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/v1/rooms/" + url.PathEscape(roomID) + "/ws"
}

func roomParams(roomID string) map[string]string {
	return map[string]string{"id": roomID}
}

func (c *apiClient) do(ctx context.Context, method, path string, params map[string]string, body, result any) error {
	req := c.httpClient.R().
		SetContext(ctx).
		SetPathParams(params).
		SetError(&responses.ErrorResponse{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	httpResp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("listen-api %s %s failed: %w", method, path, err)
	}
	if httpResp.IsError() {
		apiErr := &apiError{Status: httpResp.StatusCode()}
		if errResp, ok := httpResp.Error().(*responses.ErrorResponse); ok && errResp.Error != nil {
			apiErr.Detail = *errResp.Error
		} else {
			apiErr.Detail.Message = httpResp.String()
		}
		return apiErr
	}
	return nil
}

func (c *apiClient) mutate(ctx context.Context, method, path, roomID string, body any) (*roomres.MutationResponse, error) {
	var resp roomres.MutationResponse
	if err := c.do(ctx, method, path, roomParams(roomID), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) CreateRoom(ctx context.Context, req roomreq.CreateRoomRequest) (*room.Snapshot, error) {
	var snap room.Snapshot
	if err := c.do(ctx, http.MethodPost, "/rooms", nil, req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) GetRoom(ctx context.Context, roomID string) (*room.Snapshot, error) {
	var snap room.Snapshot
	if err := c.do(ctx, http.MethodGet, "/rooms/{id}", roomParams(roomID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) ListRooms(ctx context.Context) ([]*room.Snapshot, error) {
	var resp roomres.ListRoomsResponse
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *apiClient) DeleteRoom(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodDelete, "/rooms/{id}", roomParams(roomID), nil, &roomres.DeleteRoomResponse{})
}

func (c *apiClient) Join(ctx context.Context, roomID string, req roomreq.JoinRequest) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodPost, "/rooms/{id}/presence", roomID, req)
}

func (c *apiClient) Heartbeat(ctx context.Context, roomID string) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodPost, "/rooms/{id}/presence/heartbeat", roomID, nil)
}

func (c *apiClient) Leave(ctx context.Context, roomID string) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodDelete, "/rooms/{id}/presence", roomID, nil)
}

func (c *apiClient) Enqueue(ctx context.Context, roomID string, req roomreq.EnqueueRequest) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodPost, "/rooms/{id}/queue", roomID, req)
}

func (c *apiClient) RemoveEntry(ctx context.Context, roomID, entryID string) (*roomres.MutationResponse, error) {
	var resp roomres.MutationResponse
	params := map[string]string{"id": roomID, "entryId": entryID}
	if err := c.do(ctx, http.MethodDelete, "/rooms/{id}/queue/{entryId}", params, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Skip(ctx context.Context, roomID string, req roomreq.SkipRequest) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodPost, "/rooms/{id}/queue/skip", roomID, req)
}

func (c *apiClient) StartQueue(ctx context.Context, roomID string) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodPost, "/rooms/{id}/queue/start", roomID, nil)
}

func (c *apiClient) TrackEnded(ctx context.Context, roomID string, marker room.Marker) (*roomres.MutationResponse, error) {
	body := roomreq.MarkerRequest{EntryID: marker.EntryID, StartedAtEpochMs: marker.StartedAtEpochMs}
	return c.mutate(ctx, http.MethodPost, "/rooms/{id}/track-ended", roomID, body)
}

func (c *apiClient) SetPlaying(ctx context.Context, roomID string, playing bool) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodPost, "/rooms/{id}/playback", roomID, roomreq.PlaybackRequest{Playing: &playing})
}

func (c *apiClient) StartLive(ctx context.Context, roomID string, req roomreq.StartLiveRequest) (*roomres.LiveResponse, error) {
	var resp roomres.LiveResponse
	if err := c.do(ctx, http.MethodPost, "/rooms/{id}/live", roomParams(roomID), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) StopLive(ctx context.Context, roomID string) (*roomres.MutationResponse, error) {
	return c.mutate(ctx, http.MethodDelete, "/rooms/{id}/live", roomID, nil)
}

// TransportCredential fetches the caller's relay credential. It matches
// playback.CredentialSource.
func (c *apiClient) TransportCredential(ctx context.Context, roomID string) (*room.Credential, error) {
	var resp roomres.CredentialResponse
	if err := c.do(ctx, http.MethodGet, "/rooms/{id}/transport", roomParams(roomID), nil, &resp); err != nil {
		return nil, err
	}
	return &room.Credential{
		Identity:  resp.Identity,
		Role:      resp.Role,
		Token:     resp.Token,
		URL:       resp.URL,
		DeviceRef: resp.DeviceRef,
		ExpiresAt: time.Unix(resp.ExpiresAt, 0),
	}, nil
}
