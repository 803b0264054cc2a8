package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/events"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
	outboxmongo "github.com/textile-backoffice/roll-inventory/pkg/outbox/mongodb"
)

const batchesCollection = "batches"

// BatchRepository implements domain.BatchRepository for MongoDB
type BatchRepository struct {
	client       *pkgmongo.InstrumentedClient
	collection   *pkgmongo.InstrumentedCollection
	outboxRepo   *outboxmongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewBatchRepository creates a new BatchRepository
func NewBatchRepository(client *pkgmongo.InstrumentedClient, outboxRepo *outboxmongo.OutboxRepository, eventFactory *cloudevents.EventFactory) *BatchRepository {
	return &BatchRepository{
		client:       client,
		collection:   client.Collection(batchesCollection),
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
}

// EnsureIndexes creates the batch indexes
func (r *BatchRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "supplierId", Value: 1}, {Key: "code", Value: 1}}},
		{Keys: bson.D{{Key: "receivedAt", Value: -1}}},
	}
	return storeErr("ensure batch indexes", r.collection.CreateIndexes(ctx, indexes))
}

// Save inserts a batch at version 0 or replaces it if the stored version matches
func (r *BatchRepository) Save(ctx context.Context, batch *domain.Batch) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		doc := *batch
		doc.Version = batch.Version + 1

		if batch.Version == 0 {
			if _, err := r.collection.InsertOne(sessCtx, &doc); err != nil {
				return storeErr("insert batch", err)
			}
		} else {
			result, err := r.collection.ReplaceOne(sessCtx, bson.M{"_id": batch.ID, "version": batch.Version}, &doc)
			if err != nil {
				return storeErr("update batch", err)
			}
			if result.MatchedCount == 0 {
				count, err := r.collection.CountDocuments(sessCtx, bson.M{"_id": batch.ID})
				if err != nil {
					return storeErr("update batch", err)
				}
				if count == 0 {
					return domain.NewNotFoundError("batch", batch.ID)
				}
				return fmt.Errorf("%w: batch %s changed since version %d",
					domain.ErrConcurrentModification, batch.ID, batch.Version)
			}
		}

		rows, err := events.BatchStream.ToOutbox(sessCtx, r.eventFactory, batch.ID, batch.GetDomainEvents())
		if err != nil {
			return err
		}
		return storeErr("save batch events", r.outboxRepo.SaveAll(sessCtx, rows))
	})
	if err != nil {
		return storeErr("save batch", err)
	}

	batch.Version++
	batch.ClearDomainEvents()
	return nil
}

func (r *BatchRepository) FindByID(ctx context.Context, id string) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne()).Decode(&batch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewNotFoundError("batch", id)
	}
	if err != nil {
		return nil, storeErr("find batch", err)
	}
	return &batch, nil
}
