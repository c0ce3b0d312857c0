package store

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jan-server/services/listen-api/internal/config"
	"jan-server/services/listen-api/internal/domain/presence"
	"jan-server/services/listen-api/internal/domain/queue"
	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/infrastructure/database"
)

func playingSnapshot(id string, version uint64) *room.Snapshot {
	return &room.Snapshot{
		RoomID:  id,
		Name:    "Room " + id,
		OwnerID: "owner",
		Mode:    room.ModeQueuedPlayback,
		CurrentTrack: &room.CurrentTrack{
			EntryID:          "qe_1",
			TrackRef:         "ref:a",
			Title:            "A",
			DurationSeconds:  180,
			StartedAtEpochMs: 1_700_000_000_000,
		},
		IsPlaying: true,
		Queue: []queue.Entry{{
			Track: queue.Track{TrackRef: "ref:b", Title: "B", DurationSeconds: 90},
			ID:    "qe_2",
		}},
		Presence:    []presence.Entry{{Identity: "bob"}},
		Version:     version,
		CreatedAtMs: 1_700_000_000_000 + int64(len(id)),
		UpdatedAtMs: 1_700_000_000_500,
	}
}

func newSQLiteRepository(t *testing.T) *GormRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Connect(database.Config{Driver: config.StoreDriverSQLite, DatabaseURL: dsn}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.Migrate(context.Background(), db, config.StoreDriverSQLite, zerolog.Nop()))
	return NewGormRepository(db, zerolog.Nop())
}

func repositories(t *testing.T) map[string]room.Repository {
	return map[string]room.Repository{
		"memory": NewMemoryRepository(zerolog.Nop()),
		"sqlite": newSQLiteRepository(t),
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, playingSnapshot("r1", 4)))

			snaps, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, snaps, 1)

			got := snaps[0]
			assert.Equal(t, "r1", got.RoomID)
			assert.Equal(t, room.ModeQueuedPlayback, got.Mode)
			assert.Equal(t, "A", got.CurrentTrack.Title)
			assert.True(t, got.IsPlaying)
			require.Len(t, got.Queue, 1)
			assert.Equal(t, "qe_2", got.Queue[0].ID)
			assert.Equal(t, uint64(4), got.Version)
			assert.Empty(t, got.Presence, "presence is never stored")
		})
	}
}

func TestRepositoryKeepsNewerVersion(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, playingSnapshot("r1", 5)))

			older := playingSnapshot("r1", 3)
			older.Mode = room.ModeIdle
			older.CurrentTrack = nil
			require.NoError(t, repo.Save(ctx, older))

			newer := playingSnapshot("r1", 6)
			newer.Name = "Renamed"
			require.NoError(t, repo.Save(ctx, newer))

			snaps, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, snaps, 1)
			assert.Equal(t, uint64(6), snaps[0].Version)
			assert.Equal(t, "Renamed", snaps[0].Name)
			assert.Equal(t, room.ModeQueuedPlayback, snaps[0].Mode)
		})
	}
}

func TestRepositoryDelete(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Save(ctx, playingSnapshot("r1", 1)))
			require.NoError(t, repo.Save(ctx, playingSnapshot("room-2", 1)))
			require.NoError(t, repo.Delete(ctx, "r1"))

			snaps, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, snaps, 1)
			assert.Equal(t, "room-2", snaps[0].RoomID)
		})
	}
}

func TestLiveRoomStoredAndRestoredIdle(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	live := &room.Snapshot{
		RoomID:     "live",
		OwnerID:    "owner",
		Mode:       room.ModeLiveBroadcast,
		LiveStream: &room.LiveStream{Title: "On air", PublisherIdentity: "owner"},
		Version:    2,
	}
	require.NoError(t, repo.Save(ctx, live))

	svc := room.NewService(room.Options{Repository: repo}, zerolog.Nop())
	require.NoError(t, svc.Restore(ctx))

	snap, err := svc.GetSnapshot(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, room.ModeIdle, snap.Mode)
}
