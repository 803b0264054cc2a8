package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/catalogseed"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/memory"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
)

const testCatalog = `
suppliers:
  - {id: sup-ahm, code: AHM, name: Ahmed Mills}
  - {id: sup-kta, code: KT-A, name: Karachi Textiles}
  - {id: sup-ab, code: AB1234, name: Al Baraka Weaving}
  - {id: sup-cd, code: CD1234, name: Crescent Denim}
gsms:
  - {id: gsm-180, name: "180", value: 180}
  - {id: gsm-220, name: "220", value: 220}
qualities:
  - {id: q-prime, name: Prime}
  - {id: q-second, name: Second}
products:
  - {id: prod-denim, code: DNM180P, name: Denim 180 Prime, categoryId: cat-denim, gsmId: gsm-180, qualityId: q-prime}
  - {id: prod-twill, code: TWL220S, name: Twill 220 Second, categoryId: cat-twill, gsmId: gsm-220, qualityId: q-second}
skus:
  - {id: sku-x, productId: prod-denim, code: DNM180P-58, widthInches: 58}
  - {id: sku-y, productId: prod-denim, code: DNM180P-60, widthInches: 60}
`

var (
	jan = time.Date(2025, time.January, 10, 9, 0, 0, 0, time.UTC)
	feb = time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)
	mar = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx         context.Context
	store       *memory.Store
	rolls       *memory.RollRepository
	batches     *memory.BatchRepository
	costs       *memory.LandedCostRepository
	catalog     *memory.CatalogRepository
	outbox      *memory.OutboxRepository
	locker      *memory.KeyedLocker
	receipt     *ReceiptService
	allocation  *AllocationService
	fulfillment *FulfillmentService
	landedCost  *LandedCostService
	resolver    *ResolverService
	queries     *RollQueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewNop()

	store := memory.NewStore(nil)
	rolls := memory.NewRollRepository(store)
	batches := memory.NewBatchRepository(store)
	costs := memory.NewLandedCostRepository(store)
	catalog := memory.NewCatalogRepository(store)
	locker := memory.NewKeyedLocker()

	seed, err := catalogseed.Parse([]byte(testCatalog))
	require.NoError(t, err)
	require.NoError(t, catalog.Seed(ctx, seed))

	return &fixture{
		ctx:         ctx,
		store:       store,
		rolls:       rolls,
		batches:     batches,
		costs:       costs,
		catalog:     catalog,
		outbox:      memory.NewOutboxRepository(store),
		locker:      locker,
		receipt:     NewReceiptService(rolls, batches, catalog, store, locker, nil, logger),
		allocation:  NewAllocationService(rolls, store, nil, logger),
		fulfillment: NewFulfillmentService(rolls, store, locker, DefaultMinUsableLength, nil, logger),
		landedCost:  NewLandedCostService(rolls, costs, store, nil, logger),
		resolver:    NewResolverService(rolls, catalog, store, nil, logger),
		queries:     NewRollQueryService(rolls, logger),
	}
}

// receive creates one roll per length, all of skuID at the SKU's catalog
// width, received at the given time
func (f *fixture) receive(t *testing.T, skuID string, at time.Time, lengths ...float64) []*RollDTO {
	t.Helper()
	sku, err := f.catalog.FindSKU(f.ctx, skuID)
	require.NoError(t, err)

	items := make([]CreateRollItem, len(lengths))
	for i, l := range lengths {
		items[i] = CreateRollItem{
			SKUID:           skuID,
			WidthInches:     int(sku.WidthInches),
			Length:          l,
			BaseCostPerUnit: decimal.NewFromInt(2),
		}
	}
	result, err := f.receipt.CreateRolls(f.ctx, CreateRollsCommand{
		SupplierID:     "sup-ahm",
		BatchCode:      "L1",
		ReceivedAt:     at,
		GoodsReceiptID: "grn-" + at.Format("0102"),
		Items:          items,
		Actor:          "receiver",
	})
	require.NoError(t, err)
	return result.Rolls
}
