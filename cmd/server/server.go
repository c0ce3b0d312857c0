// @title           Listen API
// @version         1.0
// @description     Synchronized group listening rooms.
// @description     Queued playback with server-authoritative timing and owner live broadcasts over LiveKit.

// @contact.name   Jan Team
// @contact.url    https://github.com/janhq/jan-server

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8190
// @BasePath  /v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token from Keycloak

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"jan-server/services/listen-api/internal/config"
	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/infrastructure/bootstrap"
	"jan-server/services/listen-api/internal/infrastructure/cache"
	"jan-server/services/listen-api/internal/infrastructure/janitor"
	"jan-server/services/listen-api/internal/infrastructure/logger"
	"jan-server/services/listen-api/internal/infrastructure/observability"
	"jan-server/services/listen-api/internal/infrastructure/reaper"
	"jan-server/services/listen-api/internal/interfaces/httpserver"
	"jan-server/services/listen-api/internal/interfaces/httpserver/hub"
)

// Application holds the main application components.
type Application struct {
	cfg        *config.Config
	httpServer *httpserver.HTTPServer
	rooms      room.Service
	dispatcher *room.Dispatcher
	hub        *hub.Hub
	bus        *cache.SnapshotBus
	lease      room.Lease
	reaper     *reaper.Reaper
	janitor    *janitor.Janitor
	log        zerolog.Logger
}

// NewApplication creates a new application instance.
func NewApplication(
	cfg *config.Config,
	httpServer *httpserver.HTTPServer,
	rooms room.Service,
	dispatcher *room.Dispatcher,
	snapshotHub *hub.Hub,
	bus *cache.SnapshotBus,
	lease room.Lease,
	roomReaper *reaper.Reaper,
	roomJanitor *janitor.Janitor,
	log zerolog.Logger,
) *Application {
	return &Application{
		cfg:        cfg,
		httpServer: httpServer,
		rooms:      rooms,
		dispatcher: dispatcher,
		hub:        snapshotHub,
		bus:        bus,
		lease:      lease,
		reaper:     roomReaper,
		janitor:    roomJanitor,
		log:        log,
	}
}

// Start restores persisted rooms, seeds configured ones and runs until ctx
// is cancelled.
func (a *Application) Start(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	defer a.dispatcher.Stop()

	if err := a.rooms.Restore(ctx); err != nil {
		return fmt.Errorf("restore rooms: %w", err)
	}
	if err := bootstrap.Seed(ctx, a.rooms, a.cfg.RoomsFile, a.log); err != nil {
		return err
	}

	defer a.releaseLeases()
	a.reaper.Start(ctx)
	defer a.reaper.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.httpServer.Run(gctx) })
	g.Go(func() error { return a.janitor.Run(gctx) })
	if a.bus != nil {
		g.Go(func() error { return a.bus.Subscribe(gctx, a.hub.Broadcast) })
	}
	return g.Wait()
}

func (a *Application) releaseLeases() {
	releaser, ok := a.lease.(interface{ ReleaseAll(context.Context) })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	releaser.ReleaseAll(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	app, cleanup, err := buildApplication(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}
	defer cleanup()

	log.Info().
		Str("service", cfg.ServiceName).
		Int("port", cfg.HTTPPort).
		Str("environment", cfg.Environment).
		Str("store", cfg.StoreDriver).
		Bool("redis", cfg.RedisEnabled()).
		Msg("starting application")

	if err := app.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
