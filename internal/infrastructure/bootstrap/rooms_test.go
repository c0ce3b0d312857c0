package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/listen-api/internal/domain/room"
)

type fakeEnsurer struct {
	existing map[string]bool
	owners   map[string]string
}

func (f *fakeEnsurer) EnsureRoom(_ context.Context, ownerID string, req room.CreateRoomRequest) (*room.Snapshot, bool, error) {
	if f.existing[req.ID] {
		return &room.Snapshot{RoomID: req.ID}, false, nil
	}
	f.existing[req.ID] = true
	f.owners[req.ID] = ownerID
	return &room.Snapshot{RoomID: req.ID, Name: req.Name, OwnerID: ownerID}, true, nil
}

func TestParseRooms(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "valid", input: "rooms:\n  - {id: lounge, name: Lounge, owner: dj}\n  - {id: study, owner: alice}\n", want: 2},
		{name: "empty", input: "", want: 0},
		{name: "missing owner", input: "rooms:\n  - {id: lounge}\n", wantErr: true},
		{name: "duplicate id", input: "rooms:\n  - {id: a, owner: x}\n  - {id: a, owner: y}\n", wantErr: true},
		{name: "malformed", input: "rooms: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seeds, err := ParseRooms([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, seeds, tt.want)
		})
	}
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  - {id: lounge, name: Lounge, owner: dj}\n  - {id: study, owner: alice}\n"), 0o600))

	ensurer := &fakeEnsurer{existing: map[string]bool{"study": true}, owners: map[string]string{}}
	require.NoError(t, Seed(context.Background(), ensurer, path, zerolog.Nop()))

	assert.Equal(t, "dj", ensurer.owners["lounge"])
	assert.NotContains(t, ensurer.owners, "study")

	assert.NoError(t, Seed(context.Background(), ensurer, "", zerolog.Nop()))
}
