package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/gridmesh/halo/internal/geometry"
)

// Config holds all exchange tuning.
type Config struct {
	Mesh     MeshConfig
	Exchange ExchangeConfig
	Logging  LogConfig
}

// MeshConfig holds the uniform block geometry.
type MeshConfig struct {
	NX1         int `envconfig:"HALO_NX1" default:"16"`
	NX2         int `envconfig:"HALO_NX2" default:"16"`
	NX3         int `envconfig:"HALO_NX3" default:"16"`
	Ghost       int `envconfig:"HALO_GHOST" default:"2"`
	CoarseGhost int `envconfig:"HALO_COARSE_GHOST" default:"2"`
}

// ExchangeConfig holds round behavior.
type ExchangeConfig struct {
	ShuffleSeed   int64         `envconfig:"HALO_SHUFFLE_SEED" default:"0"`
	Deterministic bool          `envconfig:"HALO_DETERMINISTIC" default:"false"`
	Workers       int           `envconfig:"HALO_WORKERS" default:"4"`
	PollInterval  time.Duration `envconfig:"HALO_POLL_INTERVAL" default:"50us"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"HALO_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"HALO_LOG_DEV" default:"false"`
}

// Layout converts the mesh section into the geometry layout.
func (m MeshConfig) Layout() geometry.Layout {
	return geometry.Layout{
		NX1:         m.NX1,
		NX2:         m.NX2,
		NX3:         m.NX3,
		Ghost:       m.Ghost,
		CoarseGhost: m.CoarseGhost,
	}
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Mesh.Layout().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			NX1:         16,
			NX2:         16,
			NX3:         16,
			Ghost:       2,
			CoarseGhost: 2,
		},
		Exchange: ExchangeConfig{
			Workers:      4,
			PollInterval: 50 * time.Microsecond,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}
