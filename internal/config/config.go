// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config aggregates application configuration values.
type Config struct {
	Store     StoreConfig     `envPrefix:"STORE_"`
	Graph     GraphConfig     `envPrefix:"GRAPH_"`
	SQLite    SQLiteConfig    `envPrefix:"SQLITE_"`
	Ops       OpsConfig       `envPrefix:"OPS_"`
	Logging   LoggingConfig   `envPrefix:"LOG_"`
	Telemetry TelemetryConfig `envPrefix:"OTEL_"`
	Ingest    IngestConfig    `envPrefix:"INGEST_"`
}

// StoreConfig selects where ledger state lives.
type StoreConfig struct {
	Backend string `env:"BACKEND" envDefault:"memory"`
}

// GraphConfig describes connectivity to the Neo4j database.
type GraphConfig struct {
	URI            string `env:"URI"`
	Database       string `env:"DATABASE"`
	Username       string `env:"USERNAME"`
	Password       string `env:"PASSWORD"`
	MaxConnections int    `env:"MAX_CONNECTIONS" envDefault:"10"`
}

type SQLiteConfig struct {
	Path string `env:"PATH" envDefault:"supplytrace.db"`
}

// OpsConfig governs the health and metrics listener.
type OpsConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"false"`
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"9090"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `env:"LEVEL" envDefault:"info"`
	Format        string `env:"FORMAT" envDefault:"text"` // text|json
	IncludeCaller bool   `env:"INCLUDE_CALLER" envDefault:"false"`
}

// TelemetryConfig enables OTLP trace export when Endpoint is set.
type TelemetryConfig struct {
	Endpoint    string `env:"ENDPOINT"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"supplytrace"`
}

// IngestConfig tunes bulk seeding and stream replay.
type IngestConfig struct {
	Workers int `env:"WORKERS" envDefault:"4"`
	// RatePerSecond caps submissions per second; zero means unlimited.
	RatePerSecond float64 `env:"RATE" envDefault:"0"`
	Burst         int     `env:"BURST" envDefault:"1"`
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the parser cannot express.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendNeo4j:
		if c.Graph.URI == "" {
			return fmt.Errorf("GRAPH_URI is required for the neo4j backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Ops.Port <= 0 || c.Ops.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Ops.Port)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive, got %d", c.Ingest.Workers)
	}
	if c.Ingest.RatePerSecond < 0 {
		return fmt.Errorf("INGEST_RATE must not be negative")
	}
	return nil
}
