package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config holds all configuration for the listen-api service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"listen-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"LISTEN_API_PORT" envDefault:"8190"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OpenTelemetry
	EnableTracing bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// Auth (Keycloak) - uses global auth vars
	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer   string `env:"ISSUER"`
	AuthAudience string `env:"AUDIENCE"`
	AuthJWKSURL  string `env:"JWKS_URL"`

	// TrustGatewayHeaders accepts X-User-ID from an upstream gateway while
	// auth is enabled. Only set it when the gateway strips client copies.
	TrustGatewayHeaders bool `env:"TRUST_GATEWAY_HEADERS" envDefault:"false"`

	// LiveKit audio transport
	LiveKitWsURL        string        `env:"LIVEKIT_WS_URL" envDefault:"ws://localhost:7880"`
	LiveKitAPIKey       string        `env:"LIVEKIT_API_KEY"`
	LiveKitAPISecret    string        `env:"LIVEKIT_API_SECRET"`
	LiveKitTokenTTL     time.Duration `env:"LIVEKIT_TOKEN_TTL" envDefault:"6h"`
	TransportTimeout    time.Duration `env:"TRANSPORT_TIMEOUT" envDefault:"5s"`
	CredentialCacheSize int           `env:"TRANSPORT_CREDENTIAL_CACHE_SIZE" envDefault:"4096"`

	// Presence and synchronization
	HeartbeatInterval       time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	PresenceTTL             time.Duration `env:"PRESENCE_TTL" envDefault:"60s"`
	ReapInterval            time.Duration `env:"REAP_INTERVAL" envDefault:"5s"`
	DriftThreshold          time.Duration `env:"DRIFT_THRESHOLD" envDefault:"3s"`
	EndOfTrackTolerance     time.Duration `env:"END_OF_TRACK_TOLERANCE" envDefault:"0s"`
	AutoAdvanceGrace        time.Duration `env:"AUTO_ADVANCE_GRACE" envDefault:"10s"`
	AutoStopLiveOnOwnerExit bool          `env:"AUTO_STOP_LIVE_ON_OWNER_EXIT" envDefault:"true"`

	// Persistence
	StoreDriver       string        `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxIdle         int           `env:"DB_MAX_IDLE" envDefault:"5"`
	DBMaxOpen         int           `env:"DB_MAX_OPEN" envDefault:"15"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`

	// Redis fan-out and room lease (disabled when REDIS_URL is empty)
	RedisURL           string        `env:"REDIS_URL"`
	RedisChannelPrefix string        `env:"REDIS_CHANNEL_PREFIX" envDefault:"listen"`
	LeaseTTL           time.Duration `env:"LEASE_TTL" envDefault:"8s"`

	// Room housekeeping
	RoomIdleEviction time.Duration `env:"ROOM_IDLE_EVICTION" envDefault:"24h"`
	JanitorSchedule  string        `env:"JANITOR_SCHEDULE" envDefault:"*/5 * * * *"`
	RoomsFile        string        `env:"ROOMS_FILE"`

	// WebSocket push
	WSWriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSPingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthAudience) == "" {
			return fmt.Errorf("AUDIENCE is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("JWKS_URL is required when AUTH_ENABLED is true")
		}
	}

	if strings.TrimSpace(c.LiveKitAPIKey) == "" {
		return fmt.Errorf("LIVEKIT_API_KEY is required")
	}
	if strings.TrimSpace(c.LiveKitAPISecret) == "" {
		return fmt.Errorf("LIVEKIT_API_SECRET is required")
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.PresenceTTL < 2*c.HeartbeatInterval {
		return fmt.Errorf("PRESENCE_TTL (%s) must be at least twice HEARTBEAT_INTERVAL (%s)", c.PresenceTTL, c.HeartbeatInterval)
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("REAP_INTERVAL must be positive")
	}
	if c.DriftThreshold <= 0 {
		return fmt.Errorf("DRIFT_THRESHOLD must be positive")
	}
	if c.EndOfTrackTolerance < 0 {
		return fmt.Errorf("END_OF_TRACK_TOLERANCE must not be negative")
	}

	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres, StoreDriverSQLite:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %s", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	if c.RedisURL != "" && c.LeaseTTL <= c.TransportTimeout {
		return fmt.Errorf("LEASE_TTL (%s) must exceed TRANSPORT_TIMEOUT (%s)", c.LeaseTTL, c.TransportTimeout)
	}

	return nil
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// RedisEnabled reports whether snapshot fan-out and room leases use Redis.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisURL) != ""
}
