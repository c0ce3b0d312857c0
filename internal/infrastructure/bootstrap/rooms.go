// Package bootstrap seeds rooms from a yaml file at startup.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"jan-server/services/listen-api/internal/domain/room"
)

// RoomSeed is one room declared in the seed file.
type RoomSeed struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

type seedFile struct {
	Rooms []RoomSeed `yaml:"rooms"`
}

// Ensurer creates a room unless it already exists.
type Ensurer interface {
	EnsureRoom(ctx context.Context, ownerID string, req room.CreateRoomRequest) (*room.Snapshot, bool, error)
}

// LoadRooms reads the seed file at path.
func LoadRooms(path string) ([]RoomSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms file: %w", err)
	}
	return ParseRooms(data)
}

// ParseRooms decodes and validates seed yaml.
func ParseRooms(data []byte) ([]RoomSeed, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rooms file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Rooms))
	for i, seed := range file.Rooms {
		if strings.TrimSpace(seed.ID) == "" || strings.TrimSpace(seed.Owner) == "" {
			return nil, fmt.Errorf("rooms[%d]: id and owner are required", i)
		}
		if _, dup := seen[seed.ID]; dup {
			return nil, fmt.Errorf("rooms[%d]: duplicate id %q", i, seed.ID)
		}
		seen[seed.ID] = struct{}{}
	}
	return file.Rooms, nil
}

// Seed creates every room from path that does not exist yet. An empty path
// is a no-op.
func Seed(ctx context.Context, rooms Ensurer, path string, log zerolog.Logger) error {
	if path == "" {
		return nil
	}

	seeds, err := LoadRooms(path)
	if err != nil {
		return err
	}

	created := 0
	for _, seed := range seeds {
		_, isNew, err := rooms.EnsureRoom(ctx, seed.Owner, room.CreateRoomRequest{ID: seed.ID, Name: seed.Name})
		if err != nil {
			return fmt.Errorf("seed room %s: %w", seed.ID, err)
		}
		if isNew {
			created++
		}
	}

	log.Info().Str("file", path).Int("declared", len(seeds)).Int("created", created).Msg("rooms seeded")
	return nil
}
