// Package config defines service configuration and its loading hooks.
//
// Conventions:
// - New() returns a Config holding every default.
// - Load layers a YAML file and LADDER_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import "time"

// Storage drivers understood by the service.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver is "memory" or "sqlite".
	StorageDriver string `koanf:"storage_driver"`

	// SQLitePath is the database file used when StorageDriver is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// RebuildQueueSize bounds the number of pending rebuild requests.
	RebuildQueueSize int `koanf:"rebuild_queue_size"`

	// RebuildTimeoutMS caps a single rebuild run. Zero disables the cap.
	RebuildTimeoutMS int `koanf:"rebuild_timeout_ms"`

	// RebuildOnStart runs one rebuild when the service starts.
	RebuildOnStart bool `koanf:"rebuild_on_start"`

	// IdempotencyCacheSize bounds the number of remembered Idempotency-Key values.
	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// IdempotencyTTLMS forgets an Idempotency-Key after this long. Zero keeps keys
	// until the cache evicts them by size.
	IdempotencyTTLMS int `koanf:"idempotency_ttl_ms"`

	// JWTSecret enables bearer-token actor resolution when non-empty (HS256).
	JWTSecret string `koanf:"jwt_secret"`

	// OTelEndpoint is the OTLP/HTTP collector endpoint. Empty disables tracing.
	OTelEndpoint string `koanf:"otel_endpoint"`

	// OTelServiceName is reported as service.name on every span.
	OTelServiceName string `koanf:"otel_service_name"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		StorageDriver:        StorageMemory,
		SQLitePath:           "ladder.db",
		RebuildQueueSize:     64,
		RebuildTimeoutMS:     30_000,
		RebuildOnStart:       true,
		IdempotencyCacheSize: 10_000,
		IdempotencyTTLMS:     24 * 60 * 60 * 1000,
		OTelServiceName:      "scrappers-ladder",
	}
}

// RebuildTimeout returns RebuildTimeoutMS as a duration.
func (c *Config) RebuildTimeout() time.Duration {
	return time.Duration(c.RebuildTimeoutMS) * time.Millisecond
}

// IdempotencyTTL returns IdempotencyTTLMS as a duration.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLMS) * time.Millisecond
}
