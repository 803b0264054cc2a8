package main

import (
	"context"
	"fmt"

	"github.com/textile-backoffice/roll-inventory/internal/config"
	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/catalogseed"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/memory"
	mongoRepo "github.com/textile-backoffice/roll-inventory/internal/infrastructure/mongodb"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	"github.com/textile-backoffice/roll-inventory/pkg/idempotency"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/mongodb"
	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
	outboxmongo "github.com/textile-backoffice/roll-inventory/pkg/outbox/mongodb"
)

// storage is one configured persistence backend
type storage struct {
	rolls   domain.RollRepository
	batches domain.BatchRepository
	costs   domain.LandedCostRepository
	catalog domain.CatalogRepository
	tx      domain.TransactionManager
	outbox  outbox.Repository

	seed  func(ctx context.Context, seed *catalogseed.Seed) error
	ready func(ctx context.Context) error
	close func(ctx context.Context) error

	// idempotency stores Idempotency-Key responses beside the inventory data
	idempotency idempotency.KeyRepository
}

func newMemoryStorage(eventFactory *cloudevents.EventFactory) *storage {
	store := memory.NewStore(eventFactory)
	catalog := memory.NewCatalogRepository(store)
	return &storage{
		rolls:   memory.NewRollRepository(store),
		batches: memory.NewBatchRepository(store),
		costs:   memory.NewLandedCostRepository(store),
		catalog: catalog,
		tx:      store,
		outbox:  memory.NewOutboxRepository(store),
		seed:    catalog.Seed,
		ready:   func(context.Context) error { return nil },
		close:   func(context.Context) error { return nil },

		idempotency: idempotency.NewMemoryKeyRepository(),
	}
}

func newMongoStorage(ctx context.Context, cfg *mongodb.Config, eventFactory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) (*storage, error) {
	client, err := mongodb.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	instrumented := mongodb.NewInstrumentedClient(client, m, logger)

	outboxRepo := outboxmongo.NewOutboxRepository(instrumented)
	rolls := mongoRepo.NewRollRepository(instrumented, outboxRepo, eventFactory)
	batches := mongoRepo.NewBatchRepository(instrumented, outboxRepo, eventFactory)
	costs := mongoRepo.NewLandedCostRepository(instrumented)
	catalog := mongoRepo.NewCatalogRepository(instrumented, outboxRepo, eventFactory)
	keys := idempotency.NewMongoKeyRepository(instrumented)

	indexed := []interface {
		EnsureIndexes(ctx context.Context) error
	}{outboxRepo, rolls, batches, costs, catalog, keys}
	for _, repo := range indexed {
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = instrumented.Close(ctx)
			return nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
	}

	return &storage{
		rolls:   rolls,
		batches: batches,
		costs:   costs,
		catalog: catalog,
		tx:      mongoRepo.NewTransactionManager(instrumented),
		outbox:  outboxRepo,
		seed:    catalog.Seed,
		ready:   instrumented.HealthCheck,
		close:   instrumented.Close,

		idempotency: keys,
	}, nil
}

// openStorage builds the configured backend and loads the catalog seed file
func openStorage(ctx context.Context, cfg *config.Config, eventFactory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) (*storage, error) {
	var (
		st  *storage
		err error
	)
	switch cfg.Inventory.Storage {
	case config.StorageMongoDB:
		st, err = newMongoStorage(ctx, cfg.MongoDB, eventFactory, m, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)
	default:
		st = newMemoryStorage(eventFactory)
		logger.Warn("Using in-memory storage; data is lost on restart")
	}

	if cfg.Inventory.CatalogSeedFile != "" {
		seed, err := catalogseed.Load(cfg.Inventory.CatalogSeedFile)
		if err != nil {
			_ = st.close(ctx)
			return nil, err
		}
		if err := st.seed(ctx, seed); err != nil {
			_ = st.close(ctx)
			return nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
		logger.Info("Catalog seeded",
			"file", cfg.Inventory.CatalogSeedFile,
			"suppliers", len(seed.Suppliers),
			"skus", len(seed.SKUs),
		)
	}
	return st, nil
}
