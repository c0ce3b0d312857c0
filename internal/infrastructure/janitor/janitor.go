// Package janitor evicts rooms that have been idle, empty and untouched for
// longer than the configured eviction age.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"jan-server/services/listen-api/internal/infrastructure/metrics"
	"jan-server/services/listen-api/internal/infrastructure/observability"
)

// JobTimeout bounds a single eviction run.
const JobTimeout = 2 * time.Minute

const lockName = "janitor"

// Evictor is the part of the room service the janitor drives.
type Evictor interface {
	EvictIdle(ctx context.Context, idleFor time.Duration) (int, error)
}

// Locker serializes runs across instances. The redis cache implements it.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) (bool, error)
}

// Janitor schedules idle room eviction on a cron expression.
type Janitor struct {
	ctab     *crontab.Crontab
	rooms    Evictor
	locker   Locker
	jobs     *observability.JobInstrumenter
	schedule string
	idleFor  time.Duration
	log      zerolog.Logger
}

// New creates a janitor. locker and jobs may be nil.
func New(rooms Evictor, locker Locker, jobs *observability.JobInstrumenter, schedule string, idleFor time.Duration, log zerolog.Logger) *Janitor {
	return &Janitor{
		ctab:     crontab.New(),
		rooms:    rooms,
		locker:   locker,
		jobs:     jobs,
		schedule: schedule,
		idleFor:  idleFor,
		log:      log.With().Str("component", "room-janitor").Logger(),
	}
}

// Run schedules the eviction job and blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	if err := j.ctab.AddJob(j.schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), JobTimeout)
		defer cancel()
		if _, err := j.RunOnce(jobCtx); err != nil {
			j.log.Error().Err(err).Msg("idle room eviction failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule janitor %q: %w", j.schedule, err)
	}
	j.log.Info().Str("schedule", j.schedule).Dur("idle_for", j.idleFor).Msg("room janitor scheduled")

	<-ctx.Done()
	j.ctab.Shutdown()
	return nil
}

// RunOnce evicts idle rooms now. It returns the number of evicted rooms.
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	evicted := 0
	evict := func(ctx context.Context) error {
		n, err := j.rooms.EvictIdle(ctx, j.idleFor)
		evicted = n
		metrics.EvictedRooms.Add(float64(n))
		if n > 0 {
			j.log.Info().Int("evicted", n).Msg("evicted idle rooms")
		}
		return err
	}

	run := evict
	if j.jobs != nil {
		run = func(ctx context.Context) error { return j.jobs.Run(ctx, "evict_idle", evict) }
	}

	if j.locker == nil {
		return evicted, run(ctx)
	}

	ran, err := j.locker.WithLock(ctx, lockName, JobTimeout, run)
	if !ran {
		j.log.Debug().Msg("janitor lock held by another instance, skipping run")
	}
	return evicted, err
}
