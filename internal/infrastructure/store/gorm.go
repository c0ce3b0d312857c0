package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jan-server/services/listen-api/internal/domain/queue"
	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(&RoomRecord{})
}

// RoomState is the mode-specific part of a stored room.
type RoomState struct {
	CurrentTrack *room.CurrentTrack `json:"current_track,omitempty"`
	IsPlaying    bool               `json:"is_playing,omitempty"`
	LiveStream   *room.LiveStream   `json:"live_stream,omitempty"`
}

// RoomRecord is the database row of a room. Presence is never stored.
type RoomRecord struct {
	ID          string                           `gorm:"primaryKey;size:64"`
	Name        string                           `gorm:"size:255;not null"`
	OwnerID     string                           `gorm:"size:255;not null;index"`
	Mode        string                           `gorm:"size:32;not null"`
	State       datatypes.JSONType[RoomState]    `gorm:"not null"`
	Queue       datatypes.JSONSlice[queue.Entry] `gorm:"not null"`
	Version     uint64                           `gorm:"not null"`
	CreatedAtMs int64                            `gorm:"not null"`
	UpdatedAtMs int64                            `gorm:"not null"`
	UpdatedAt   time.Time
}

// TableName pins the table name shared with the SQL migrations.
func (RoomRecord) TableName() string {
	return "listen_rooms"
}

func recordFromSnapshot(snap *room.Snapshot) *RoomRecord {
	entries := snap.Queue
	if entries == nil {
		entries = []queue.Entry{}
	}
	return &RoomRecord{
		ID:      snap.RoomID,
		Name:    snap.Name,
		OwnerID: snap.OwnerID,
		Mode:    string(snap.Mode),
		State: datatypes.NewJSONType(RoomState{
			CurrentTrack: snap.CurrentTrack,
			IsPlaying:    snap.IsPlaying,
			LiveStream:   snap.LiveStream,
		}),
		Queue:       datatypes.JSONSlice[queue.Entry](entries),
		Version:     snap.Version,
		CreatedAtMs: snap.CreatedAtMs,
		UpdatedAtMs: snap.UpdatedAtMs,
	}
}

func (r *RoomRecord) snapshot() *room.Snapshot {
	state := r.State.Data()
	return &room.Snapshot{
		RoomID:       r.ID,
		Name:         r.Name,
		OwnerID:      r.OwnerID,
		Mode:         room.Mode(r.Mode),
		CurrentTrack: state.CurrentTrack,
		IsPlaying:    state.IsPlaying,
		LiveStream:   state.LiveStream,
		Queue:        []queue.Entry(r.Queue),
		Version:      r.Version,
		CreatedAtMs:  r.CreatedAtMs,
		UpdatedAtMs:  r.UpdatedAtMs,
	}
}

// GormRepository stores rooms in Postgres or SQLite.
type GormRepository struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewGormRepository creates a repository on db.
func NewGormRepository(db *gorm.DB, log zerolog.Logger) *GormRepository {
	return &GormRepository{
		db:  db,
		log: log.With().Str("component", "room-repository").Str("driver", db.Dialector.Name()).Logger(),
	}
}

// Save upserts the room. A stored row with a newer version is kept.
func (g *GormRepository) Save(ctx context.Context, snap *room.Snapshot) error {
	record := recordFromSnapshot(snap)
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: record.TableName(), Name: "version"}, Value: snap.Version},
		}},
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("save room %s: %w", snap.RoomID, err)
	}
	return nil
}

// Delete removes a room.
func (g *GormRepository) Delete(ctx context.Context, roomID string) error {
	if err := g.db.WithContext(ctx).Delete(&RoomRecord{}, "id = ?", roomID).Error; err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}

// List loads every stored room ordered by creation time.
func (g *GormRepository) List(ctx context.Context) ([]*room.Snapshot, error) {
	var records []RoomRecord
	if err := g.db.WithContext(ctx).Order("created_at_ms ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	snaps := make([]*room.Snapshot, 0, len(records))
	for i := range records {
		snaps = append(snaps, records[i].snapshot())
	}
	g.log.Debug().Int("rooms", len(snaps)).Msg("rooms loaded")
	return snaps, nil
}
