package idempotency

import (
	"context"
	"time"
)

// KeyRepository stores idempotency keys. Implementations must make
// AcquireLock atomic per (serviceID, key).
type KeyRepository interface {
	// AcquireLock inserts key, or loads the stored key with the same
	// (ServiceID, Key). The returned flag is true when the caller now holds
	// the lock: either the key is new, or it was neither completed nor
	// locked within lockTimeout. A false flag with a completed key means the
	// stored response should be replayed.
	AcquireLock(ctx context.Context, key *Key, lockTimeout time.Duration) (*Key, bool, error)

	// ReleaseLock drops the lock so the request can be retried with the same key
	ReleaseLock(ctx context.Context, keyID string) error

	// StoreResponse marks the key completed and caches the response
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error
}
