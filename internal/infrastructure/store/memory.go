package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/room"
)

// MemoryRepository keeps room checkpoints in process memory.
// Thread-safe via sync.RWMutex.
type MemoryRepository struct {
	mu    sync.RWMutex
	rooms map[string]*room.Snapshot
	log   zerolog.Logger
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(log zerolog.Logger) *MemoryRepository {
	return &MemoryRepository{
		rooms: make(map[string]*room.Snapshot),
		log:   log.With().Str("component", "room-repository").Str("driver", "memory").Logger(),
	}
}

// Save stores snap unless a newer version of the room is already stored.
func (s *MemoryRepository) Save(_ context.Context, snap *room.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rooms[snap.RoomID]; ok && existing.Version > snap.Version {
		return nil
	}
	stored := *snap
	stored.Presence = nil
	s.rooms[snap.RoomID] = &stored
	return nil
}

// Delete removes a room.
func (s *MemoryRepository) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
	return nil
}

// List returns all stored rooms ordered by creation time.
func (s *MemoryRepository) List(_ context.Context) ([]*room.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*room.Snapshot, 0, len(s.rooms))
	for _, snap := range s.rooms {
		out := *snap
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAtMs < result[j].CreatedAtMs
	})
	return result, nil
}
