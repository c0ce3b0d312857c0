package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		LiveKitAPIKey:     "key",
		LiveKitAPISecret:  "secret",
		HeartbeatInterval: 30 * time.Second,
		PresenceTTL:       60 * time.Second,
		ReapInterval:      5 * time.Second,
		DriftThreshold:    3 * time.Second,
		TransportTimeout:  5 * time.Second,
		LeaseTTL:          8 * time.Second,
		StoreDriver:       StoreDriverMemory,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LIVEKIT_API_KEY", "devkey")
	t.Setenv("LIVEKIT_API_SECRET", "devsecret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.PresenceTTL != 60*time.Second {
		t.Errorf("PresenceTTL = %s, want 60s", cfg.PresenceTTL)
	}
	if cfg.DriftThreshold != 3*time.Second {
		t.Errorf("DriftThreshold = %s, want 3s", cfg.DriftThreshold)
	}
	if cfg.EndOfTrackTolerance != 0 {
		t.Errorf("EndOfTrackTolerance = %s, want 0s", cfg.EndOfTrackTolerance)
	}
	if !cfg.AutoStopLiveOnOwnerExit {
		t.Error("AutoStopLiveOnOwnerExit should default to true")
	}
	if cfg.Addr() != ":8190" {
		t.Errorf("Addr() = %s", cfg.Addr())
	}
	if cfg.RedisEnabled() {
		t.Error("redis should be disabled without REDIS_URL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing livekit key", mutate: func(c *Config) { c.LiveKitAPIKey = " " }, wantErr: "LIVEKIT_API_KEY"},
		{name: "missing livekit secret", mutate: func(c *Config) { c.LiveKitAPISecret = "" }, wantErr: "LIVEKIT_API_SECRET"},
		{name: "auth without issuer", mutate: func(c *Config) { c.AuthEnabled = true }, wantErr: "ISSUER"},
		{
			name:    "presence ttl shorter than two intervals",
			mutate:  func(c *Config) { c.PresenceTTL = 45 * time.Second },
			wantErr: "PRESENCE_TTL",
		},
		{
			name:    "negative end of track tolerance",
			mutate:  func(c *Config) { c.EndOfTrackTolerance = -time.Second },
			wantErr: "END_OF_TRACK_TOLERANCE",
		},
		{name: "unknown store driver", mutate: func(c *Config) { c.StoreDriver = "mongo" }, wantErr: "STORE_DRIVER"},
		{name: "postgres without url", mutate: func(c *Config) { c.StoreDriver = StoreDriverPostgres }, wantErr: "DATABASE_URL"},
		{
			name: "lease shorter than transport timeout",
			mutate: func(c *Config) {
				c.RedisURL = "redis://localhost:6379"
				c.LeaseTTL = time.Second
			},
			wantErr: "LEASE_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
