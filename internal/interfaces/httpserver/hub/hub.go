// Package hub pushes room snapshots to websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/infrastructure/metrics"
)

// Hub tracks websocket clients per room. Every client receives each room
// version at most once and in increasing order, whether it came from the
// local dispatcher or from another instance.
type Hub struct {
	writeTimeout time.Duration
	pingInterval time.Duration
	clock        room.Clock
	log          zerolog.Logger

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

// New creates a hub.
func New(writeTimeout, pingInterval time.Duration, log zerolog.Logger) *Hub {
	return &Hub{
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		clock:        time.Now,
		log:          log.With().Str("component", "ws-hub").Logger(),
		rooms:        make(map[string]map[*client]struct{}),
	}
}

// Name implements room.Sink.
func (h *Hub) Name() string { return "websocket" }

// Deliver implements room.Sink.
func (h *Hub) Deliver(_ context.Context, snap *room.Snapshot) error {
	h.Broadcast(snap)
	return nil
}

// Broadcast sends snap to every client of its room that has not seen this
// version yet. Clients that cannot keep up are disconnected. A closed room
// disconnects all of its clients after the final snapshot.
func (h *Hub) Broadcast(snap *room.Snapshot) {
	payload, err := json.Marshal(snap.At(h.clock()))
	if err != nil {
		h.log.Error().Err(err).Str("room_id", snap.RoomID).Msg("failed to encode snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[snap.RoomID] {
		if snap.Version <= c.last && !snap.Closed {
			continue
		}
		c.last = snap.Version
		select {
		case c.send <- payload:
		default:
			h.log.Warn().Str("room_id", snap.RoomID).Str("identity", c.identity).Msg("dropping slow websocket client")
			h.removeLocked(c)
			continue
		}
		if snap.Closed {
			h.removeLocked(c)
		}
	}
}

// Serve registers conn as a client of roomID, sends initial and blocks until
// the connection goes away.
func (h *Hub) Serve(conn *websocket.Conn, roomID, identity string, initial *room.Snapshot) {
	c := &client{
		conn:     conn,
		roomID:   roomID,
		identity: identity,
		send:     make(chan []byte, sendBuffer),
	}
	h.register(c)
	defer h.unregister(c)

	if initial != nil {
		h.Broadcast(initial)
	}

	go c.writePump(h.writeTimeout, h.pingInterval)
	c.readPump(2 * h.pingInterval)
}

// Clients returns the number of clients connected to roomID.
func (h *Hub) Clients(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[c.roomID]
	if !ok {
		clients = make(map[*client]struct{})
		h.rooms[c.roomID] = clients
	}
	clients[c] = struct{}{}
	metrics.WebSocketClients.Inc()
	h.log.Debug().Str("room_id", c.roomID).Str("identity", c.identity).Msg("websocket client registered")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	clients, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, c.roomID)
	}
	c.close()
	metrics.WebSocketClients.Dec()
	h.log.Debug().Str("room_id", c.roomID).Str("identity", c.identity).Msg("websocket client unregistered")
}
