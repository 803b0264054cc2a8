package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryKeyRepository keeps idempotency keys in process. Expired keys are
// dropped lazily on the next AcquireLock.
type MemoryKeyRepository struct {
	mu   sync.Mutex
	keys map[string]*Key
	byID map[string]string
	now  func() time.Time
}

// NewMemoryKeyRepository creates an empty in-process key repository
func NewMemoryKeyRepository() *MemoryKeyRepository {
	return &MemoryKeyRepository{
		keys: make(map[string]*Key),
		byID: make(map[string]string),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func scopedKey(serviceID, key string) string {
	return serviceID + "\x00" + key
}

func (r *MemoryKeyRepository) AcquireLock(_ context.Context, key *Key, lockTimeout time.Duration) (*Key, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.purge(now)

	scoped := scopedKey(key.ServiceID, key.Key)
	stored, ok := r.keys[scoped]
	if !ok {
		stored = cloneKey(key)
		stored.LockedAt = &now
		r.keys[scoped] = stored
		r.byID[stored.ID] = scoped
		return cloneKey(stored), true, nil
	}
	if stored.IsCompleted() || !stored.lockStale(now, lockTimeout) {
		return cloneKey(stored), false, nil
	}
	stored.LockedAt = &now
	return cloneKey(stored), true, nil
}

func (r *MemoryKeyRepository) ReleaseLock(_ context.Context, keyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(keyID)
	if err != nil {
		return err
	}
	stored.LockedAt = nil
	return nil
}

func (r *MemoryKeyRepository) StoreResponse(_ context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.lookup(keyID)
	if err != nil {
		return err
	}
	now := r.now()
	stored.ResponseCode = responseCode
	stored.ResponseBody = append([]byte(nil), responseBody...)
	stored.ResponseHeaders = make(map[string]string, len(headers))
	for k, v := range headers {
		stored.ResponseHeaders[k] = v
	}
	stored.CompletedAt = &now
	stored.LockedAt = nil
	return nil
}

func (r *MemoryKeyRepository) lookup(keyID string) (*Key, error) {
	scoped, ok := r.byID[keyID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.keys[scoped], nil
}

func (r *MemoryKeyRepository) purge(now time.Time) {
	for scoped, k := range r.keys {
		if !k.ExpiresAt.After(now) {
			delete(r.keys, scoped)
			delete(r.byID, k.ID)
		}
	}
}

func cloneKey(k *Key) *Key {
	c := *k
	c.ResponseBody = append([]byte(nil), k.ResponseBody...)
	if k.ResponseHeaders != nil {
		c.ResponseHeaders = make(map[string]string, len(k.ResponseHeaders))
		for h, v := range k.ResponseHeaders {
			c.ResponseHeaders[h] = v
		}
	}
	return &c
}
