package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"jan-server/services/listen-api/internal/config"
	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/infrastructure/auth"
	"jan-server/services/listen-api/internal/infrastructure/cache"
	"jan-server/services/listen-api/internal/infrastructure/database"
	"jan-server/services/listen-api/internal/infrastructure/janitor"
	"jan-server/services/listen-api/internal/infrastructure/livekit"
	"jan-server/services/listen-api/internal/infrastructure/metrics"
	"jan-server/services/listen-api/internal/infrastructure/observability"
	"jan-server/services/listen-api/internal/infrastructure/reaper"
	"jan-server/services/listen-api/internal/infrastructure/store"
	"jan-server/services/listen-api/internal/interfaces/httpserver"
	"jan-server/services/listen-api/internal/interfaces/httpserver/handlers"
	"jan-server/services/listen-api/internal/interfaces/httpserver/hub"
	"jan-server/services/listen-api/internal/interfaces/httpserver/routes"
)

// Backends holds the optional stateful dependencies. Redis and DB are nil
// when not configured.
type Backends struct {
	Repository room.Repository
	Redis      *cache.Redis
	DB         *gorm.DB
}

// ProvideBackends connects the room repository and Redis.
func ProvideBackends(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backends, func(), error) {
	b := &Backends{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		db, err := database.Connect(database.ConfigFrom(cfg), log)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() {
			if err := database.Close(db); err != nil {
				log.Warn().Err(err).Msg("failed to close database")
			}
		})
		if err := database.Migrate(ctx, db, cfg.StoreDriver, log); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		b.DB = db
		b.Repository = store.NewGormRepository(db, log)
	default:
		b.Repository = store.NewMemoryRepository(log)
	}

	if cfg.RedisEnabled() {
		r, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.RedisChannelPrefix, log)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() {
			if err := r.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close redis")
			}
		})
		b.Redis = r
	}

	return b, cleanup, nil
}

// ProvideReadinessChecks returns a check per configured backend.
func ProvideReadinessChecks(b *Backends) []httpserver.ReadinessCheck {
	var checks []httpserver.ReadinessCheck
	if b.DB != nil {
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "database",
			Check: func(ctx context.Context) error {
				sqlDB, err := b.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		})
	}
	if b.Redis != nil {
		checks = append(checks, httpserver.ReadinessCheck{Name: "redis", Check: b.Redis.HealthCheck})
	}
	return checks
}

// ProvideAuthValidator provides an auth validator.
func ProvideAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

// ProvideTransport provides the LiveKit audio transport.
func ProvideTransport(cfg *config.Config, log zerolog.Logger) (*livekit.Transport, error) {
	return livekit.NewTransport(cfg, livekit.NewRoomService(cfg), livekit.NewTokenGenerator(cfg), log)
}

// ProvideHub provides the websocket snapshot hub.
func ProvideHub(cfg *config.Config, log zerolog.Logger) *hub.Hub {
	return hub.New(cfg.WSWriteTimeout, cfg.WSPingInterval, log)
}

// ProvideSnapshotBus provides the cross-instance snapshot bus, nil without Redis.
func ProvideSnapshotBus(b *Backends) *cache.SnapshotBus {
	if b.Redis == nil {
		return nil
	}
	return cache.NewSnapshotBus(b.Redis, uuid.NewString())
}

// ProvideDispatcher wires every snapshot sink.
func ProvideDispatcher(b *Backends, snapshotHub *hub.Hub, bus *cache.SnapshotBus, log zerolog.Logger) *room.Dispatcher {
	d := room.NewDispatcher(log, room.RepositorySink(b.Repository), snapshotHub)
	if bus != nil {
		d.AddSink(bus)
	}
	return d
}

// ProvideLease provides the room lease; a local lease without Redis.
func ProvideLease(cfg *config.Config, b *Backends) room.Lease {
	if b.Redis == nil {
		return room.LocalLease()
	}
	return cache.NewRoomLease(b.Redis, cfg.LeaseTTL)
}

// ProvideRoomService provides the room service.
func ProvideRoomService(
	cfg *config.Config,
	transport *livekit.Transport,
	dispatcher *room.Dispatcher,
	b *Backends,
	lease room.Lease,
	log zerolog.Logger,
) room.Service {
	return room.NewService(room.Options{
		Settings: room.Settings{
			PresenceTTL:             cfg.PresenceTTL,
			EndOfTrackTolerance:     cfg.EndOfTrackTolerance,
			AutoAdvanceGrace:        cfg.AutoAdvanceGrace,
			AutoStopLiveOnOwnerExit: cfg.AutoStopLiveOnOwnerExit,
			TransportTimeout:        cfg.TransportTimeout,
			DriftThreshold:          cfg.DriftThreshold,
		},
		Transport:   transport,
		Publisher:   dispatcher,
		Repository:  b.Repository,
		Lease:       lease,
		OnMutation:  metrics.RecordMutation,
		OnTransport: metrics.RecordTransportCall,
	}, log)
}

// ProvideJobInstrumenter provides the background job instrumenter.
func ProvideJobInstrumenter(cfg *config.Config) (*observability.JobInstrumenter, error) {
	return observability.NewJobInstrumenter(cfg.ServiceName)
}

// ProvideReaper provides the room reaper.
func ProvideReaper(cfg *config.Config, rooms room.Service, jobs *observability.JobInstrumenter, log zerolog.Logger) *reaper.Reaper {
	return reaper.New(rooms, jobs, cfg.ReapInterval, log)
}

// ProvideJanitor provides the idle room janitor. Runs are serialized across
// instances through Redis when it is configured.
func ProvideJanitor(cfg *config.Config, rooms room.Service, b *Backends, jobs *observability.JobInstrumenter, log zerolog.Logger) *janitor.Janitor {
	var locker janitor.Locker
	if b.Redis != nil {
		locker = b.Redis
	}
	return janitor.New(rooms, locker, jobs, cfg.JanitorSchedule, cfg.RoomIdleEviction, log)
}

// buildApplication constructs the application by hand in the same order as
// the wire injector.
func buildApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, func(), error) {
	backends, cleanup, err := ProvideBackends(ctx, cfg, log)
	if err != nil {
		return nil, cleanup, fmt.Errorf("initialize backends: %w", err)
	}

	authValidator, err := ProvideAuthValidator(ctx, cfg, log)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("initialize auth validator: %w", err)
	}

	transport, err := ProvideTransport(cfg, log)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("initialize transport: %w", err)
	}

	jobs, err := ProvideJobInstrumenter(cfg)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("initialize job instrumenter: %w", err)
	}

	snapshotHub := ProvideHub(cfg, log)
	bus := ProvideSnapshotBus(backends)
	dispatcher := ProvideDispatcher(backends, snapshotHub, bus, log)
	lease := ProvideLease(cfg, backends)
	rooms := ProvideRoomService(cfg, transport, dispatcher, backends, lease, log)

	handlerProvider := handlers.NewProvider(rooms, snapshotHub)
	routeProvider := routes.NewProvider(handlerProvider, authValidator)
	httpServer := httpserver.New(cfg, log, routeProvider, ProvideReadinessChecks(backends))

	app := NewApplication(
		cfg,
		httpServer,
		rooms,
		dispatcher,
		snapshotHub,
		bus,
		lease,
		ProvideReaper(cfg, rooms, jobs, log),
		ProvideJanitor(cfg, rooms, backends, jobs, log),
		log,
	)
	return app, cleanup, nil
}
