package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address" env:"REELHUB_SERVER_ADDRESS"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Presence struct {
		Path                string        `yaml:"path"`
		PingInterval        time.Duration `yaml:"ping_interval" env:"REELHUB_PRESENCE_PING_INTERVAL"`
		PongTimeout         time.Duration `yaml:"pong_timeout" env:"REELHUB_PRESENCE_PONG_TIMEOUT"`
		WriteTimeout        time.Duration `yaml:"write_timeout"`
		SendBuffer          int           `yaml:"send_buffer"`
		BroadcastWorkers    int           `yaml:"broadcast_workers"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
	} `yaml:"presence"`

	Store struct {
		Driver           string        `yaml:"driver" env:"REELHUB_STORE_DRIVER"`
		Codec            string        `yaml:"codec" env:"REELHUB_STORE_CODEC"`
		FallbackToMemory bool          `yaml:"fallback_to_memory"`
		RetryAttempts    int           `yaml:"retry_attempts"`
		RetryDelay       time.Duration `yaml:"retry_delay"`

		Redis struct {
			Address  string `yaml:"address" env:"REELHUB_REDIS_ADDRESS"`
			Password string `yaml:"password" env:"REELHUB_REDIS_PASSWORD"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`

		SQLite struct {
			Path string `yaml:"path" env:"REELHUB_SQLITE_PATH"`
		} `yaml:"sqlite"`

		CircuitBreaker struct {
			Enabled          bool          `yaml:"enabled"`
			FailureThreshold int           `yaml:"failure_threshold"`
			OpenTimeout      time.Duration `yaml:"open_timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"store"`

	Auth struct {
		JWTSecret      string   `yaml:"jwt_secret" env:"REELHUB_JWT_SECRET"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"REELHUB_ALLOWED_ORIGINS" envSeparator:","`
	} `yaml:"auth"`

	Authz struct {
		// AdminOverride lets admins perform self-write operations on any profile.
		AdminOverride bool `yaml:"admin_override" env:"REELHUB_ADMIN_OVERRIDE"`
	} `yaml:"authz"`

	Monitoring struct {
		PrometheusEnabled  bool          `yaml:"prometheus_enabled"`
		HealthCheckTimeout time.Duration `yaml:"health_check_timeout"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled" env:"REELHUB_TRACING_ENABLED"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url" env:"REELHUB_JAEGER_URL"`
		Environment string  `yaml:"environment" env:"REELHUB_ENVIRONMENT"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level      string `yaml:"level" env:"REELHUB_LOG_LEVEL"`
		Format     string `yaml:"format"`
		File       string `yaml:"file" env:"REELHUB_LOG_FILE"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Presence.Path == "" || c.Presence.Path[0] != '/' {
		return fmt.Errorf("presence.path must start with /")
	}
	if c.Presence.PingInterval <= 0 {
		return fmt.Errorf("presence.ping_interval must be > 0")
	}
	if c.Presence.PongTimeout <= c.Presence.PingInterval {
		return fmt.Errorf("presence.pong_timeout must be > presence.ping_interval")
	}
	if c.Presence.WriteTimeout <= 0 {
		return fmt.Errorf("presence.write_timeout must be > 0")
	}
	if c.Presence.SendBuffer <= 0 {
		return fmt.Errorf("presence.send_buffer must be > 0")
	}
	if c.Presence.BroadcastWorkers <= 0 {
		return fmt.Errorf("presence.broadcast_workers must be > 0")
	}
	if c.Presence.MaxMessageSizeBytes < 0 {
		return fmt.Errorf("presence.max_message_size_bytes must be >= 0")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("store.redis.address must not be empty when store.driver=redis")
		}
		if c.Store.Redis.PoolSize <= 0 {
			return fmt.Errorf("store.redis.pool_size must be > 0 when store.driver=redis")
		}
	case StoreSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path must not be empty when store.driver=sqlite")
		}
	default:
		return fmt.Errorf("store.driver must be one of memory, redis, sqlite (got %q)", c.Store.Driver)
	}
	if c.Store.Codec != "json" && c.Store.Codec != "cbor" {
		return fmt.Errorf("store.codec must be json or cbor (got %q)", c.Store.Codec)
	}
	if c.Store.RetryAttempts < 1 {
		return fmt.Errorf("store.retry_attempts must be >= 1")
	}
	if c.Store.RetryDelay < 0 {
		return fmt.Errorf("store.retry_delay must be >= 0")
	}
	if c.Store.CircuitBreaker.Enabled {
		if c.Store.CircuitBreaker.FailureThreshold < 1 {
			return fmt.Errorf("store.circuit_breaker.failure_threshold must be >= 1")
		}
		if c.Store.CircuitBreaker.OpenTimeout <= 0 {
			return fmt.Errorf("store.circuit_breaker.open_timeout must be > 0")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}

	if c.Monitoring.HealthCheckTimeout <= 0 {
		return fmt.Errorf("monitoring.health_check_timeout must be > 0")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console (got %q)", c.Logging.Format)
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.max_size_mb must be > 0 when logging.file is set")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from a YAML file over the defaults, then applies
// REELHUB_* environment overrides. A missing file means defaults only.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Presence.Path = "/ws"
	cfg.Presence.PingInterval = 30 * time.Second
	cfg.Presence.PongTimeout = 60 * time.Second
	cfg.Presence.WriteTimeout = 10 * time.Second
	cfg.Presence.SendBuffer = 16
	cfg.Presence.BroadcastWorkers = 8
	cfg.Presence.MaxMessageSizeBytes = 4 * 1024

	cfg.Store.Driver = StoreMemory
	cfg.Store.Codec = "json"
	cfg.Store.FallbackToMemory = true
	cfg.Store.RetryAttempts = 10
	cfg.Store.RetryDelay = 5 * time.Millisecond
	cfg.Store.Redis.Address = "localhost:6379"
	cfg.Store.Redis.PoolSize = 10
	cfg.Store.SQLite.Path = "data/reelhub.db"
	cfg.Store.CircuitBreaker.Enabled = true
	cfg.Store.CircuitBreaker.FailureThreshold = 5
	cfg.Store.CircuitBreaker.OpenTimeout = 10 * time.Second

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Authz.AdminOverride = false

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.HealthCheckTimeout = 2 * time.Second

	cfg.Tracing.ServiceName = "reelhub"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 30

	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100

	return cfg
}
