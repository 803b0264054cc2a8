package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
)

// Config holds Redis connection and sequence lock settings
type Config struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db" validate:"gte=0"`
	LockTTL   time.Duration `yaml:"lockTTL"`
	LockWait  time.Duration `yaml:"lockWait"`
	KeyPrefix string        `yaml:"keyPrefix"`
}

// DefaultConfig returns defaults for a local Redis. An empty Addr disables Redis.
func DefaultConfig() *Config {
	return &Config{
		LockTTL:   5 * time.Second,
		LockWait:  3 * time.Second,
		KeyPrefix: "roll-seq:",
	}
}

// NewClient connects and pings Redis
func NewClient(ctx context.Context, cfg *Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// SequenceLocker holds a short Redis lock per roll sequence key so that
// instances deriving the next sequence for the same key take turns
type SequenceLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	prefix string
	logger *logging.Logger
}

// NewSequenceLocker creates a SequenceLocker on client
func NewSequenceLocker(client redislock.RedisClient, cfg *Config, logger *logging.Logger) *SequenceLocker {
	return &SequenceLocker{
		locker: redislock.New(client),
		ttl:    cfg.LockTTL,
		wait:   cfg.LockWait,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}
}

// Lock obtains the lock for key, retrying until the configured wait elapses.
// A busy or unreachable Redis is reported as a transient failure.
func (l *SequenceLocker) Lock(ctx context.Context, key string) (func(), error) {
	obtainCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.locker.Obtain(obtainCtx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: sequence lock %s is busy", domain.ErrTransient, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: obtain sequence lock %s: %v", domain.ErrTransient, key, err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) && l.logger != nil {
			l.logger.WithError(err).Warn("Failed to release sequence lock", "key", key)
		}
	}, nil
}
