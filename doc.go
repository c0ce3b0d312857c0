// Package listenapi implements the listen-api service which hosts
// synchronized group listening rooms.
//
// The service provides:
//   - Room lifecycle management (create, get, list, delete)
//   - Presence with heartbeats and a background reaper
//   - A shared queue with owner-controlled playback and auto-advance
//   - Live broadcasts relayed through LiveKit
//   - Versioned room snapshots over REST and websocket
//   - JWT authentication via Keycloak
//
// The listen-cli command drives rooms from a terminal and can follow a room
// with a simulated player.
package listenapi
