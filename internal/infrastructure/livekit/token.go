package livekit

import (
	"time"

	"github.com/livekit/protocol/auth"

	"jan-server/services/listen-api/internal/config"
	"jan-server/services/listen-api/internal/domain/room"
)

// TokenGenerator issues LiveKit access tokens for room legs.
type TokenGenerator struct {
	apiKey    string
	apiSecret string
}

// NewTokenGenerator creates a token generator from the LiveKit credentials.
func NewTokenGenerator(cfg *config.Config) *TokenGenerator {
	return &TokenGenerator{
		apiKey:    cfg.LiveKitAPIKey,
		apiSecret: cfg.LiveKitAPISecret,
	}
}

// Generate creates a token joining identity to relayRoom. Publishers may send
// microphone audio; listeners only subscribe.
func (g *TokenGenerator) Generate(relayRoom, identity, displayName string, role room.Role, ttl time.Duration) (string, error) {
	at := auth.NewAccessToken(g.apiKey, g.apiSecret)

	canPublish := role == room.RolePublisher
	canSubscribe := true
	canPublishData := false

	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           relayRoom,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}
	if canPublish {
		grant.CanPublishSources = []string{"microphone"}
	}

	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(ttl)

	return at.ToJWT()
}
