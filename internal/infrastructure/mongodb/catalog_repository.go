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
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/catalogseed"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/events"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
	outboxmongo "github.com/textile-backoffice/roll-inventory/pkg/outbox/mongodb"
)

const (
	suppliersCollection = "suppliers"
	gsmsCollection      = "gsms"
	qualitiesCollection = "qualities"
	productsCollection  = "products"
	skusCollection      = "skus"
)

// names compare case-insensitively
var nameCollation = &options.Collation{Locale: "en", Strength: 2}

// CatalogRepository implements domain.CatalogRepository for MongoDB
type CatalogRepository struct {
	client       *pkgmongo.InstrumentedClient
	suppliers    *pkgmongo.InstrumentedCollection
	gsms         *pkgmongo.InstrumentedCollection
	qualities    *pkgmongo.InstrumentedCollection
	products     *pkgmongo.InstrumentedCollection
	skus         *pkgmongo.InstrumentedCollection
	outboxRepo   *outboxmongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(client *pkgmongo.InstrumentedClient, outboxRepo *outboxmongo.OutboxRepository, eventFactory *cloudevents.EventFactory) *CatalogRepository {
	return &CatalogRepository{
		client:       client,
		suppliers:    client.Collection(suppliersCollection),
		gsms:         client.Collection(gsmsCollection),
		qualities:    client.Collection(qualitiesCollection),
		products:     client.Collection(productsCollection),
		skus:         client.Collection(skusCollection),
		outboxRepo:   outboxRepo,
		eventFactory: eventFactory,
	}
}

// EnsureIndexes creates the catalog indexes
func (r *CatalogRepository) EnsureIndexes(ctx context.Context) error {
	byName := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetCollation(nameCollation),
	}}
	if err := r.gsms.CreateIndexes(ctx, byName); err != nil {
		return storeErr("ensure gsm indexes", err)
	}
	if err := r.qualities.CreateIndexes(ctx, byName); err != nil {
		return storeErr("ensure quality indexes", err)
	}
	if err := r.products.CreateIndexes(ctx, []mongo.IndexModel{{
		Keys: bson.D{{Key: "categoryId", Value: 1}, {Key: "gsmId", Value: 1}, {Key: "qualityId", Value: 1}},
	}}); err != nil {
		return storeErr("ensure product indexes", err)
	}
	return storeErr("ensure sku indexes", r.skus.CreateIndexes(ctx, []mongo.IndexModel{{
		Keys:    bson.D{{Key: "productId", Value: 1}, {Key: "widthInches", Value: 1}},
		Options: options.Index().SetUnique(true),
	}}))
}

// Seed upserts reference data by id
func (r *CatalogRepository) Seed(ctx context.Context, seed *catalogseed.Seed) error {
	upserts := func(coll *pkgmongo.InstrumentedCollection, docs map[string]interface{}) error {
		if len(docs) == 0 {
			return nil
		}
		models := make([]mongo.WriteModel, 0, len(docs))
		for id, doc := range docs {
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": id}).
				SetReplacement(doc).
				SetUpsert(true))
		}
		_, err := coll.BulkWrite(ctx, models)
		return storeErr("seed "+coll.Name(), err)
	}

	suppliers := make(map[string]interface{})
	for _, s := range seed.DomainSuppliers() {
		suppliers[s.ID] = s
	}
	gsms := make(map[string]interface{})
	for _, g := range seed.DomainGSMs() {
		gsms[g.ID] = g
	}
	qualities := make(map[string]interface{})
	for _, q := range seed.DomainQualities() {
		qualities[q.ID] = q
	}
	products := make(map[string]interface{})
	for _, p := range seed.DomainProducts() {
		products[p.ID] = p
	}
	skus := make(map[string]interface{})
	for _, s := range seed.DomainSKUs() {
		skus[s.ID] = s
	}

	for _, step := range []struct {
		coll *pkgmongo.InstrumentedCollection
		docs map[string]interface{}
	}{
		{r.suppliers, suppliers},
		{r.gsms, gsms},
		{r.qualities, qualities},
		{r.products, products},
		{r.skus, skus},
	} {
		if err := upserts(step.coll, step.docs); err != nil {
			return err
		}
	}
	return nil
}

func (r *CatalogRepository) FindSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var s domain.Supplier
	if err := findOne(ctx, r.suppliers, bson.M{"_id": id}, nil, &s, "supplier", id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepository) FindGSMByName(ctx context.Context, name string) (*domain.GSM, error) {
	name = strings.TrimSpace(name)
	var g domain.GSM
	opts := options.FindOne().SetCollation(nameCollation)
	if err := findOne(ctx, r.gsms, bson.M{"name": name}, opts, &g, "gsm", name); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *CatalogRepository) FindQualityByName(ctx context.Context, name string) (*domain.Quality, error) {
	name = strings.TrimSpace(name)
	var q domain.Quality
	opts := options.FindOne().SetCollation(nameCollation)
	if err := findOne(ctx, r.qualities, bson.M{"name": name}, opts, &q, "quality", name); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *CatalogRepository) FindProduct(ctx context.Context, categoryID, gsmID, qualityID string) (*domain.Product, error) {
	var p domain.Product
	filter := bson.M{"categoryId": categoryID, "gsmId": gsmID, "qualityId": qualityID}
	key := fmt.Sprintf("%s/%s/%s", categoryID, gsmID, qualityID)
	if err := findOne(ctx, r.products, filter, nil, &p, "product", key); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) FindSKU(ctx context.Context, id string) (*domain.SKU, error) {
	var s domain.SKU
	if err := findOne(ctx, r.skus, bson.M{"_id": id}, nil, &s, "sku", id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CatalogRepository) FindSKUForProduct(ctx context.Context, productID string, width domain.Width) (*domain.SKU, error) {
	var s domain.SKU
	filter := bson.M{"productId": productID, "widthInches": width}
	key := fmt.Sprintf("%s@%d", productID, int(width))
	if err := findOne(ctx, r.skus, filter, nil, &s, "sku", key); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSKU inserts a SKU. The unique product/width index turns a second
// insert for the same pair into ErrConcurrentModification.
func (r *CatalogRepository) SaveSKU(ctx context.Context, sku *domain.SKU) error {
	err := r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.skus.InsertOne(sessCtx, sku); err != nil {
			return storeErr("insert sku", err)
		}
		rows, err := events.SKUStream.ToOutbox(sessCtx, r.eventFactory, sku.ID, sku.GetDomainEvents())
		if err != nil {
			return err
		}
		return storeErr("save sku events", r.outboxRepo.SaveAll(sessCtx, rows))
	})
	if err != nil {
		return storeErr("save sku", err)
	}
	sku.ClearDomainEvents()
	return nil
}

func findOne(ctx context.Context, coll *pkgmongo.InstrumentedCollection, filter bson.M, opts *options.FindOneOptions, out interface{}, resource, key string) error {
	if opts == nil {
		opts = options.FindOne()
	}
	err := coll.FindOne(ctx, filter, opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.NewNotFoundError(resource, key)
	}
	return storeErr("find "+resource, err)
}
