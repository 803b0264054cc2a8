package idempotency

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultMaxKeyLength is the maximum length for an idempotency key
	DefaultMaxKeyLength = 255

	// DefaultLockTimeout is how long a key stays locked by an unfinished request
	DefaultLockTimeout = 5 * time.Minute

	// DefaultRetentionPeriod is how long completed keys are replayed
	DefaultRetentionPeriod = 24 * time.Hour

	// DefaultMaxResponseSize is the largest response body that is stored (1MB)
	DefaultMaxResponseSize = 1 * 1024 * 1024
)

// Config holds configuration for the idempotency middleware
type Config struct {
	ServiceName string
	Repository  KeyRepository

	// RequireKey rejects mutating requests without an Idempotency-Key
	RequireKey bool

	// ActorExtractor records who issued the request alongside the key
	ActorExtractor func(*gin.Context) string

	MaxKeyLength    int
	LockTimeout     time.Duration
	RetentionPeriod time.Duration
	MaxResponseSize int

	Metrics *Metrics
	Logger  *slog.Logger
}

// DefaultConfig returns a default configuration for the given service
func DefaultConfig(serviceName string, repository KeyRepository) *Config {
	return &Config{
		ServiceName:     serviceName,
		Repository:      repository,
		MaxKeyLength:    DefaultMaxKeyLength,
		LockTimeout:     DefaultLockTimeout,
		RetentionPeriod: DefaultRetentionPeriod,
		MaxResponseSize: DefaultMaxResponseSize,
		Logger:          slog.Default(),
	}
}
