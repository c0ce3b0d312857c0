package room

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink consumes published snapshots. Deliveries for one room arrive in
// version order; intermediate versions may be skipped when a newer one is
// already pending.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, snap *Snapshot) error
}

const sinkDeliverTimeout = 5 * time.Second

// Dispatcher fans published snapshots out to sinks on a background
// goroutine so room writers never wait on I/O. Pending snapshots are
// coalesced per room, keeping only the newest.
type Dispatcher struct {
	sinks []Sink
	log   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*Snapshot
	order   []string

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher delivering to sinks.
func NewDispatcher(log zerolog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		log:     log.With().Str("component", "snapshot-dispatcher").Logger(),
		pending: make(map[string]*Snapshot),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// AddSink registers another sink. It must be called before Start.
func (d *Dispatcher) AddSink(sink Sink) {
	d.sinks = append(d.sinks, sink)
}

// Publish queues snap for delivery. It never blocks.
func (d *Dispatcher) Publish(snap *Snapshot) {
	d.mu.Lock()
	existing, ok := d.pending[snap.RoomID]
	switch {
	case !ok:
		d.order = append(d.order, snap.RoomID)
		d.pending[snap.RoomID] = snap
	case existing.Version < snap.Version:
		d.pending[snap.RoomID] = snap
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Start begins delivering in background.
// Safe to call multiple times - only the first call starts the dispatcher.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run(ctx)
		d.log.Info().Int("sinks", len(d.sinks)).Msg("snapshot dispatcher started")
	})
}

// Stop shuts the dispatcher down after delivering what is still pending.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), sinkDeliverTimeout)
		defer cancel()
		d.flush(ctx)
		d.log.Info().Msg("snapshot dispatcher stopped")
	})
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-d.wake:
			d.flush(ctx)
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context) {
	d.mu.Lock()
	batch := make([]*Snapshot, 0, len(d.order))
	for _, roomID := range d.order {
		batch = append(batch, d.pending[roomID])
	}
	d.pending = make(map[string]*Snapshot)
	d.order = nil
	d.mu.Unlock()

	for _, snap := range batch {
		for _, sink := range d.sinks {
			deliverCtx, cancel := context.WithTimeout(ctx, sinkDeliverTimeout)
			err := sink.Deliver(deliverCtx, snap)
			cancel()
			if err != nil {
				d.log.Error().
					Err(err).
					Str("sink", sink.Name()).
					Str("room_id", snap.RoomID).
					Uint64("version", snap.Version).
					Msg("snapshot delivery failed")
			}
		}
	}
}

// Repository persists room state. Presence is ephemeral and not stored.
type Repository interface {
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, roomID string) error
	List(ctx context.Context) ([]*Snapshot, error)
}

type repositorySink struct {
	repo Repository
}

// RepositorySink checkpoints every delivered snapshot and deletes closed rooms.
func RepositorySink(repo Repository) Sink {
	return &repositorySink{repo: repo}
}

func (s *repositorySink) Name() string { return "repository" }

func (s *repositorySink) Deliver(ctx context.Context, snap *Snapshot) error {
	if snap.Closed {
		return s.repo.Delete(ctx, snap.RoomID)
	}
	return s.repo.Save(ctx, snap)
}
