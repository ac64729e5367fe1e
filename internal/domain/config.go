package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Storage     StorageConfig  `mapstructure:"storage"`
	Database    DatabaseConfig `mapstructure:"database"`
	Scorer      ScorerConfig   `mapstructure:"scorer"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Events      EventsConfig   `mapstructure:"events"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// StorageConfig selects the patient store.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite or postgres
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ScoringMode selects how trajectories are computed.
type ScoringMode string

const (
	// ScoringModeExternal prefers the external scorer process and falls back to
	// local scoring only when the scorer is unavailable.
	ScoringModeExternal ScoringMode = "external"
	// ScoringModeLocal never starts a process (demo and offline use).
	ScoringModeLocal ScoringMode = "local"
)

// IsValid reports whether m is a known scoring mode.
func (m ScoringMode) IsValid() bool {
	return m == ScoringModeExternal || m == ScoringModeLocal
}

// ScorerConfig configures the external scoring process and its guards.
type ScorerConfig struct {
	Mode              ScoringMode          `mapstructure:"mode"`
	Command           string               `mapstructure:"command"`
	Args              []string             `mapstructure:"args"`
	WorkDir           string               `mapstructure:"work_dir"`
	Timeout           time.Duration        `mapstructure:"timeout"`
	SpawnsPerSecond   float64              `mapstructure:"spawns_per_second"`
	SpawnBurst        int                  `mapstructure:"spawn_burst"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	RecomputeParallel int                  `mapstructure:"recompute_parallel"`
}

// CircuitBreakerConfig configures the breaker guarding the scorer process.
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

// CacheConfig represents prediction cache configuration
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxItems   int           `mapstructure:"max_items"`
	TTL        time.Duration `mapstructure:"ttl"`
	RedisURL   string        `mapstructure:"redis_url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
}

// EventsConfig configures tier-transition publishing.
type EventsConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}
