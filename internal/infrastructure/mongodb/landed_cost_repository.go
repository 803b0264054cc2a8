package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
)

const landedCostsCollection = "landed_costs"

// LandedCostRepository implements domain.LandedCostRepository for MongoDB.
// Cost entries raise no events of their own; the per-roll LandedCostApplied
// events are written by the roll repository.
type LandedCostRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewLandedCostRepository creates a new LandedCostRepository
func NewLandedCostRepository(client *pkgmongo.InstrumentedClient) *LandedCostRepository {
	return &LandedCostRepository{collection: client.Collection(landedCostsCollection)}
}

// EnsureIndexes creates the cost entry indexes
func (r *LandedCostRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "receivingEventId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "purchaseInvoiceId", Value: 1}}, Options: options.Index().SetSparse(true)},
	}
	return storeErr("ensure landed cost indexes", r.collection.CreateIndexes(ctx, indexes))
}

// Save inserts an entry at version 0 or replaces it if the stored version matches
func (r *LandedCostRepository) Save(ctx context.Context, entry *domain.LandedCostEntry) error {
	doc := *entry
	doc.Version = entry.Version + 1

	if entry.Version == 0 {
		if _, err := r.collection.InsertOne(ctx, &doc); err != nil {
			return storeErr("insert landed cost", err)
		}
		entry.Version++
		return nil
	}

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": entry.ID, "version": entry.Version}, &doc)
	if err != nil {
		return storeErr("update landed cost", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, entry.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: cost entry %s changed since version %d",
			domain.ErrConcurrentModification, entry.ID, entry.Version)
	}
	entry.Version++
	return nil
}

func (r *LandedCostRepository) FindByID(ctx context.Context, id string) (*domain.LandedCostEntry, error) {
	var entry domain.LandedCostEntry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewNotFoundError("landed cost entry", id)
	}
	if err != nil {
		return nil, storeErr("find landed cost", err)
	}
	return &entry, nil
}

func (r *LandedCostRepository) FindByReceivingEvent(ctx context.Context, receivingEventID string) ([]*domain.LandedCostEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"receivingEventId": receivingEventID}, opts)
	if err != nil {
		return nil, storeErr("find landed costs", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*domain.LandedCostEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, storeErr("decode landed costs", err)
	}
	return entries, nil
}
