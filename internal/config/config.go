// Package config defines the configuration for the evTrak services.
// Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles: values come from the
// environment, optionally seeded by a .env file for local development. Any
// missing required value or invalid format fails startup.
package config

import "time"

// Config is the top-level configuration shared by the API, gateway, and
// simulator binaries. Each binary reads only the subsets it needs.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	Server   ServerConfig
	Gateway  GatewayConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Tracking TrackingConfig
}

// ServerConfig holds the API HTTP server settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// GatewayConfig holds the realtime gateway settings.
type GatewayConfig struct {
	Port string `envconfig:"GATEWAY_PORT" default:"8081"`

	// SessionQueueSize bounds each live session's outbound queue; a session
	// that falls this far behind is disconnected.
	SessionQueueSize int           `envconfig:"GATEWAY_SESSION_QUEUE_SIZE" default:"32" validate:"gt=0"`
	WriteTimeout     time.Duration `envconfig:"GATEWAY_WRITE_TIMEOUT" default:"10s"`
	PingInterval     time.Duration `envconfig:"GATEWAY_PING_INTERVAL" default:"30s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the distribution channel connection settings.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Channel  string `envconfig:"REDIS_CHANNEL" default:"shuttle-updates"`
}

// TrackingConfig holds engine deployment settings.
type TrackingConfig struct {
	// WatchedGeofences is the set of geofence names evaluated on every
	// position report. Which names a deployment watches is configuration,
	// not engine logic.
	WatchedGeofences []string `envconfig:"WATCHED_GEOFENCES" default:"SAS,Portal"`
}
