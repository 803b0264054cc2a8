// Package config loads the roll inventory service configuration. Values come
// from built-in defaults, then an optional YAML file, then the environment.
// A .env file, when present, only fills variables that are not already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/textile-backoffice/roll-inventory/internal/application"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/redis"
	"github.com/textile-backoffice/roll-inventory/pkg/idempotency"
	"github.com/textile-backoffice/roll-inventory/pkg/kafka"
	"github.com/textile-backoffice/roll-inventory/pkg/mongodb"
	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
	"github.com/textile-backoffice/roll-inventory/pkg/tracing"
	"github.com/textile-backoffice/roll-inventory/pkg/validation"
)

// ServiceName identifies the service in logs, metrics and traces
const ServiceName = "roll-inventory"

// Storage drivers
const (
	StorageMemory  = "memory"
	StorageMongoDB = "mongodb"
)

// Config holds application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	MongoDB     *mongodb.Config   `yaml:"mongodb"`
	Kafka       *kafka.Config     `yaml:"kafka"`
	Outbox      OutboxConfig      `yaml:"outbox"`
	Redis       *redis.Config     `yaml:"redis"`
	Tracing     *tracing.Config   `yaml:"tracing"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Inventory   InventoryConfig   `yaml:"inventory"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	Mode            string        `yaml:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `yaml:"readTimeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gt=0"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// OutboxConfig controls the relay from the outbox to Kafka
type OutboxConfig struct {
	Enabled                bool `yaml:"enabled"`
	outbox.PublisherConfig `yaml:",inline"`
}

// IdempotencyConfig controls Idempotency-Key handling on mutating routes
type IdempotencyConfig struct {
	RequireKey  bool          `yaml:"requireKey"`
	Retention   time.Duration `yaml:"retention" validate:"gt=0"`
	LockTimeout time.Duration `yaml:"lockTimeout" validate:"gt=0"`
}

type InventoryConfig struct {
	Storage string `yaml:"storage" validate:"oneof=memory mongodb"`
	// MinUsableLength is the remainder a return must exceed to spawn a new roll
	MinUsableLength float64 `yaml:"minUsableLength" validate:"gte=0"`
	CatalogSeedFile string  `yaml:"catalogSeedFile"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8010",
			Mode:            "release",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "development",
			Version:     "unknown",
		},
		MongoDB: mongodb.DefaultConfig(),
		Kafka:   kafka.DefaultConfig(),
		Outbox: OutboxConfig{
			PublisherConfig: *outbox.DefaultPublisherConfig(),
		},
		Redis:   redis.DefaultConfig(),
		Tracing: tracing.DefaultConfig(ServiceName),
		Idempotency: IdempotencyConfig{
			Retention:   idempotency.DefaultRetentionPeriod,
			LockTimeout: idempotency.DefaultLockTimeout,
		},
		Inventory: InventoryConfig{
			Storage:         StorageMemory,
			MinUsableLength: application.DefaultMinUsableLength,
		},
	}
}

// Load reads .env (ROLL_ENV_FILE, default ".env"), then the YAML file named
// by ROLL_CONFIG_FILE, then environment overrides, and validates the result.
func Load() (*Config, error) {
	envFile := os.Getenv("ROLL_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return LoadFile(os.Getenv("ROLL_CONFIG_FILE"))
}

// LoadFile builds the configuration from defaults, the YAML file at path
// (skipped when empty) and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and the cross-field rules
func (c *Config) Validate() error {
	if err := validation.Validator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Outbox.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid configuration: outbox relay needs at least one kafka broker")
	}
	return nil
}

// RedisEnabled reports whether sequence locks go through Redis
func (c *Config) RedisEnabled() bool {
	return c.Redis != nil && c.Redis.Addr != ""
}

func applyEnv(cfg *Config) error {
	e := &envReader{}

	cfg.Server.Addr = e.str("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.Mode = e.str("GIN_MODE", cfg.Server.Mode)
	cfg.Log.Level = strings.ToLower(e.str("LOG_LEVEL", cfg.Log.Level))
	cfg.Log.Environment = e.str("ENVIRONMENT", cfg.Log.Environment)
	cfg.Log.Version = e.str("VERSION", cfg.Log.Version)

	cfg.MongoDB.URI = e.str("MONGODB_URI", cfg.MongoDB.URI)
	cfg.MongoDB.Database = e.str("MONGODB_DATABASE", cfg.MongoDB.Database)
	cfg.MongoDB.ReplicaSet = e.str("MONGODB_REPLICA_SET", cfg.MongoDB.ReplicaSet)
	cfg.MongoDB.Username = e.str("MONGODB_USERNAME", cfg.MongoDB.Username)
	cfg.MongoDB.Password = e.str("MONGODB_PASSWORD", cfg.MongoDB.Password)

	cfg.Kafka.Brokers = e.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Outbox.Enabled = e.boolean("OUTBOX_ENABLED", cfg.Outbox.Enabled)
	cfg.Outbox.PollInterval = e.duration("OUTBOX_POLL_INTERVAL", cfg.Outbox.PollInterval)

	cfg.Redis.Addr = e.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = e.str("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = e.integer("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.LockTTL = e.duration("SEQUENCE_LOCK_TTL", cfg.Redis.LockTTL)

	cfg.Tracing.Enabled = e.boolean("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.OTLPEndpoint = e.str("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = e.float("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
	cfg.Tracing.Environment = cfg.Log.Environment
	cfg.Tracing.ServiceVersion = cfg.Log.Version

	cfg.Idempotency.RequireKey = e.boolean("IDEMPOTENCY_REQUIRE_KEY", cfg.Idempotency.RequireKey)
	cfg.Idempotency.Retention = e.duration("IDEMPOTENCY_RETENTION", cfg.Idempotency.Retention)
	cfg.Idempotency.LockTimeout = e.duration("IDEMPOTENCY_LOCK_TIMEOUT", cfg.Idempotency.LockTimeout)

	cfg.Inventory.Storage = strings.ToLower(e.str("INVENTORY_STORAGE", cfg.Inventory.Storage))
	cfg.Inventory.MinUsableLength = e.float("MIN_USABLE_LENGTH", cfg.Inventory.MinUsableLength)
	cfg.Inventory.CatalogSeedFile = e.str("CATALOG_SEED_FILE", cfg.Inventory.CatalogSeedFile)

	return e.err
}

// envReader reads typed overrides and keeps the first parse error
type envReader struct {
	err error
}

func (e *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) parse(key string, parse func(string) error) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if err := parse(v); err != nil && e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}

func (e *envReader) integer(key string, def int) int {
	e.parse(key, func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			def = n
		}
		return err
	})
	return def
}

func (e *envReader) float(key string, def float64) float64 {
	e.parse(key, func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			def = f
		}
		return err
	})
	return def
}

func (e *envReader) boolean(key string, def bool) bool {
	e.parse(key, func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			def = b
		}
		return err
	})
	return def
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	e.parse(key, func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			def = d
		}
		return err
	})
	return def
}

func (e *envReader) list(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
