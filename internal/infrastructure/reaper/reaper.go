// Package reaper runs the periodic room housekeeping pass: presence expiry,
// the auto-advance watchdog and retries of failed owner-exit stops.
package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/infrastructure/metrics"
	"jan-server/services/listen-api/internal/infrastructure/observability"
)

// Rooms is the part of the room service the reaper drives.
type Rooms interface {
	Reap(ctx context.Context) room.ReapStats
	ListRooms(ctx context.Context) ([]*room.Snapshot, error)
}

// Reaper ticks Rooms.Reap on a fixed interval.
type Reaper struct {
	rooms     Rooms
	jobs      *observability.JobInstrumenter
	interval  time.Duration
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a reaper. jobs may be nil.
func New(rooms Rooms, jobs *observability.JobInstrumenter, interval time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{
		rooms:    rooms,
		jobs:     jobs,
		interval: interval,
		log:      log.With().Str("component", "room-reaper").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the reap loop in background.
// Safe to call multiple times - only the first call starts the reaper.
func (r *Reaper) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run(ctx)
		r.log.Info().Dur("interval", r.interval).Msg("room reaper started")
	})
}

// Stop gracefully shuts down the reaper.
// Safe to call multiple times - only the first call stops the reaper.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.log.Info().Msg("room reaper stopped")
	})
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("context cancelled, shutting down reaper")
			return
		case <-r.done:
			r.log.Debug().Msg("done signal received, shutting down reaper")
			return
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.log.Warn().Err(err).Msg("reap pass incomplete")
			}
		}
	}
}

// Tick runs a single reap pass and refreshes the room gauges.
func (r *Reaper) Tick(ctx context.Context) error {
	if r.jobs == nil {
		return r.tick(ctx)
	}
	return r.jobs.Run(ctx, "reap", r.tick)
}

func (r *Reaper) tick(ctx context.Context) error {
	stats := r.rooms.Reap(ctx)
	metrics.ReapedRooms.Add(float64(stats.Changed))

	if stats.Changed > 0 {
		r.log.Debug().
			Int("rooms", stats.Rooms).
			Int("changed", stats.Changed).
			Msg("reap pass")
	}

	snaps, err := r.rooms.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	metrics.RecordRooms(snaps)

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d rooms failed to reap", stats.Failed, stats.Rooms)
	}
	return nil
}
