package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
)

const idempotencyKeysCollection = "idempotency_keys"

// MongoKeyRepository implements KeyRepository using MongoDB
type MongoKeyRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewMongoKeyRepository creates a new MongoDB-backed key repository
func NewMongoKeyRepository(client *pkgmongo.InstrumentedClient) *MongoKeyRepository {
	return &MongoKeyRepository{collection: client.Collection(idempotencyKeysCollection)}
}

// AcquireLock upserts key and, for an existing key, tries to take over an
// absent or stale lock
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *Key, lockTimeout time.Duration) (*Key, bool, error) {
	now := time.Now().UTC()
	key.LockedAt = &now

	filter := bson.M{"serviceId": key.ServiceID, "key": key.Key}
	update := bson.M{"$setOnInsert": key}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored Key
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// lost an insert race on the unique index; the winner's document exists now
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert idempotency key: %w", err)
	}

	if stored.ID == key.ID {
		return &stored, true, nil
	}
	if stored.IsCompleted() {
		return &stored, false, nil
	}

	steal := bson.M{
		"_id":         stored.ID,
		"completedAt": bson.M{"$exists": false},
		"$or": bson.A{
			bson.M{"lockedAt": bson.M{"$exists": false}},
			bson.M{"lockedAt": bson.M{"$lte": now.Add(-lockTimeout)}},
		},
	}
	var locked Key
	err = r.collection.FindOneAndUpdate(ctx, steal,
		bson.M{"$set": bson.M{"lockedAt": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&locked)
	switch {
	case err == nil:
		return &locked, true, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		current, err := r.get(ctx, stored.ID)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	default:
		return nil, false, fmt.Errorf("failed to lock idempotency key: %w", err)
	}
}

// ReleaseLock releases the lock on an idempotency key
func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": keyID},
		bson.M{"$unset": bson.M{"lockedAt": ""}},
	)
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// StoreResponse stores the final response for a completed request
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	update := bson.M{
		"$set": bson.M{
			"responseCode":    responseCode,
			"responseBody":    responseBody,
			"responseHeaders": headers,
			"completedAt":     time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": keyID}, update); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

func (r *MongoKeyRepository) get(ctx context.Context, keyID string) (*Key, error) {
	var result Key
	err := r.collection.FindOne(ctx, bson.M{"_id": keyID}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

// EnsureIndexes creates the lookup and TTL indexes
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "serviceId", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_service_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}
	if err := r.collection.CreateIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create idempotency indexes: %w", err)
	}
	return nil
}
