package room

import (
	"context"
	"time"
)

// Role is the kind of transport leg an identity holds.
type Role string

const (
	RolePublisher Role = "publisher"
	RoleListener  Role = "listener"
)

// Credential grants one identity access to the live audio relay.
type Credential struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        Role      `json:"role"`
	Token       string    `json:"token"`
	URL         string    `json:"url"`
	DeviceRef   string    `json:"device_ref,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Transport is the external live audio relay. The room only opens and closes
// legs at mode transition boundaries; media never passes through it.
type Transport interface {
	ConnectAsPublisher(ctx context.Context, roomID, identity, displayName, deviceRef string) (Credential, error)
	ConnectAsListener(ctx context.Context, roomID, identity, displayName string) (Credential, error)
	Disconnect(ctx context.Context, roomID, identity string) error
}

// RelayCloser is implemented by transports that hold relay resources per
// room. It is called once the last leg of a live broadcast is closed.
type RelayCloser interface {
	CloseRelay(ctx context.Context, roomID string) error
}
