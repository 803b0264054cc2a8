package idempotency

import "time"

// Key is a stored Idempotency-Key together with the response it produced
type Key struct {
	ID                 string     `bson:"_id"`
	Key                string     `bson:"key"`
	ServiceID          string     `bson:"serviceId"`
	Actor              string     `bson:"actor,omitempty"`
	RequestPath        string     `bson:"requestPath"`
	RequestMethod      string     `bson:"requestMethod"`
	RequestFingerprint string     `bson:"requestFingerprint"`
	LockedAt           *time.Time `bson:"lockedAt,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	// ExpiresAt drives the TTL index
	ExpiresAt time.Time `bson:"expiresAt"`
}

// IsCompleted returns true once a response has been stored
func (k *Key) IsCompleted() bool {
	return k.CompletedAt != nil
}

// IsLocked returns true while a request holds the key
func (k *Key) IsLocked() bool {
	return k.LockedAt != nil && k.CompletedAt == nil
}

// lockStale reports whether a lock taken at LockedAt may be stolen at now
func (k *Key) lockStale(now time.Time, lockTimeout time.Duration) bool {
	return k.LockedAt == nil || now.Sub(*k.LockedAt) >= lockTimeout
}
