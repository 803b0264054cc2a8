package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/events"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
	outboxmongo "github.com/textile-backoffice/roll-inventory/pkg/outbox/mongodb"
)

const rollsCollection = "rolls"

var fifoSort = bson.D{{Key: "receivedAt", Value: 1}, {Key: "rollNumber", Value: 1}, {Key: "_id", Value: 1}}

// RollRepository implements domain.RollRepository for MongoDB
type RollRepository struct {
	client       *pkgmongo.InstrumentedClient
	collection   *pkgmongo.InstrumentedCollection
	outboxRepo   *outboxmongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewRollRepository creates a new RollRepository
func NewRollRepository(client *pkgmongo.InstrumentedClient, outboxRepo *outboxmongo.OutboxRepository, eventFactory *cloudevents.EventFactory) *RollRepository {
	return &RollRepository{
		client:       client,
		collection:   client.Collection(rollsCollection),
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
}

// EnsureIndexes creates the roll indexes
func (r *RollRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "rollNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "barcode", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "skuId", Value: 1}, {Key: "status", Value: 1}, {Key: "receivedAt", Value: 1}, {Key: "rollNumber", Value: 1}}},
		{Keys: bson.D{{Key: "allocation.orderLineRef", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "source.goodsReceiptId", Value: 1}}},
		{Keys: bson.D{{Key: "sequenceKey", Value: 1}, {Key: "sequence", Value: -1}}},
		{Keys: bson.D{{Key: "parentRollId", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "batchId", Value: 1}}},
	}
	return storeErr("ensure roll indexes", r.collection.CreateIndexes(ctx, indexes))
}

// Insert stores new rolls and their receipt events in one transaction
func (r *RollRepository) Insert(ctx context.Context, rolls ...*domain.Roll) error {
	if len(rolls) == 0 {
		return nil
	}
	for _, roll := range rolls {
		if err := roll.Validate(); err != nil {
			return err
		}
	}

	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		docs := make([]interface{}, len(rolls))
		for i, roll := range rolls {
			doc := *roll
			doc.Version = 1
			docs[i] = &doc
		}
		if _, err := r.collection.InsertMany(sessCtx, docs); err != nil {
			return storeErr("insert rolls", err)
		}

		for _, roll := range rolls {
			if err := r.saveEvents(sessCtx, roll); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("insert rolls", err)
	}

	for _, roll := range rolls {
		roll.Version = 1
		roll.ClearDomainEvents()
	}
	return nil
}

// Update replaces the roll if its stored version matches, then writes its events
func (r *RollRepository) Update(ctx context.Context, roll *domain.Roll) error {
	if err := roll.Validate(); err != nil {
		return err
	}

	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		doc := *roll
		doc.Version = roll.Version + 1

		result, err := r.collection.ReplaceOne(sessCtx, bson.M{"_id": roll.ID, "version": roll.Version}, &doc)
		if err != nil {
			return storeErr("update roll", err)
		}
		if result.MatchedCount == 0 {
			return r.missOrStale(sessCtx, roll.ID, roll.Version)
		}
		return r.saveEvents(sessCtx, roll)
	})
	if err != nil {
		return storeErr("update roll", err)
	}

	roll.Version++
	roll.ClearDomainEvents()
	return nil
}

func (r *RollRepository) missOrStale(ctx context.Context, id string, version int64) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return storeErr("update roll", err)
	}
	if count == 0 {
		return domain.NewNotFoundError("roll", id)
	}
	return fmt.Errorf("%w: roll %s changed since version %d", domain.ErrConcurrentModification, id, version)
}

func (r *RollRepository) saveEvents(ctx context.Context, roll *domain.Roll) error {
	rows, err := events.RollStream.ToOutbox(ctx, r.eventFactory, roll.ID, roll.GetDomainEvents())
	if err != nil {
		return err
	}
	return storeErr("save roll events", r.outboxRepo.SaveAll(ctx, rows))
}

func (r *RollRepository) FindByID(ctx context.Context, id string) (*domain.Roll, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *RollRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Roll, error) {
	if len(ids) == 0 {
		return []*domain.Roll{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetSort(fifoSort))
}

func (r *RollRepository) FindByBarcode(ctx context.Context, barcode string) (*domain.Roll, error) {
	barcode = strings.ToUpper(strings.TrimSpace(barcode))
	return r.findOne(ctx, bson.M{"barcode": barcode}, barcode)
}

func (r *RollRepository) FindAvailable(ctx context.Context, skuID string, minLength float64) ([]*domain.Roll, error) {
	filter := bson.M{
		"skuId":         skuID,
		"status":        domain.RollStatusMapped,
		"currentLength": bson.M{"$gte": minLength},
	}
	return r.find(ctx, filter, options.Find().SetSort(fifoSort))
}

func (r *RollRepository) FindAllocatedTo(ctx context.Context, orderLineRef string) ([]*domain.Roll, error) {
	filter := bson.M{
		"status":                  domain.RollStatusAllocated,
		"allocation.orderLineRef": orderLineRef,
	}
	return r.find(ctx, filter, options.Find().SetSort(fifoSort))
}

func (r *RollRepository) FindByGoodsReceipt(ctx context.Context, goodsReceiptID string) ([]*domain.Roll, error) {
	return r.find(ctx, bson.M{"source.goodsReceiptId": goodsReceiptID}, options.Find().SetSort(fifoSort))
}

func (r *RollRepository) List(ctx context.Context, f domain.RollFilter) ([]*domain.Roll, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.SKUID != "" {
		filter["skuId"] = f.SKUID
	}
	if f.BatchID != "" {
		filter["batchId"] = f.BatchID
	}
	if f.SupplierID != "" {
		filter["supplierId"] = f.SupplierID
	}
	if f.GoodsReceiptID != "" {
		filter["source.goodsReceiptId"] = f.GoodsReceiptID
	}
	if f.ParentRollID != "" {
		filter["parentRollId"] = f.ParentRollID
	}

	opts := options.Find().SetSort(fifoSort)
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	return r.find(ctx, filter, opts)
}

func (r *RollRepository) MaxSequence(ctx context.Context, sequenceKey string) (int, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "sequence", Value: -1}}).
		SetProjection(bson.M{"sequence": 1})

	var doc struct {
		Sequence int `bson:"sequence"`
	}
	err := r.collection.FindOne(ctx, bson.M{"sequenceKey": sequenceKey}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("max sequence", err)
	}
	return doc.Sequence, nil
}

func (r *RollRepository) findOne(ctx context.Context, filter bson.M, key string) (*domain.Roll, error) {
	var roll domain.Roll
	err := r.collection.FindOne(ctx, filter).Decode(&roll)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewNotFoundError("roll", key)
	}
	if err != nil {
		return nil, storeErr("find roll", err)
	}
	return &roll, nil
}

func (r *RollRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.Roll, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr("find rolls", err)
	}
	defer cursor.Close(ctx)

	rolls := make([]*domain.Roll, 0)
	if err := cursor.All(ctx, &rolls); err != nil {
		return nil, storeErr("decode rolls", err)
	}
	return rolls, nil
}
