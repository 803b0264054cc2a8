package mongodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
	outboxmongo "github.com/textile-backoffice/roll-inventory/pkg/outbox/mongodb"
	pkgtesting "github.com/textile-backoffice/roll-inventory/pkg/testing"
)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *pkgtesting.MongoDBContainer
	client     *pkgmongo.InstrumentedClient
	rollRepo   *RollRepository
	batchRepo  *BatchRepository
	costRepo   *LandedCostRepository
	outboxRepo *outboxmongo.OutboxRepository
	txManager  *TransactionManager
	ctx        context.Context
	sequence   int
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := pkgtesting.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	base, err := pkgmongo.NewClient(s.ctx, container.Config("rolls_test"))
	s.Require().NoError(err)
	s.client = pkgmongo.NewInstrumentedClient(base, nil, nil)

	factory := cloudevents.NewEventFactory(cloudevents.SourceRollInventory)
	s.outboxRepo = outboxmongo.NewOutboxRepository(s.client)
	s.rollRepo = NewRollRepository(s.client, s.outboxRepo, factory)
	s.batchRepo = NewBatchRepository(s.client, s.outboxRepo, factory)
	s.costRepo = NewLandedCostRepository(s.client)
	s.txManager = NewTransactionManager(s.client)
}

func (s *RepositoryIntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.rollRepo.EnsureIndexes(s.ctx))
	s.Require().NoError(s.batchRepo.EnsureIndexes(s.ctx))
	s.Require().NoError(s.costRepo.EnsureIndexes(s.ctx))
	s.Require().NoError(s.outboxRepo.EnsureIndexes(s.ctx))
}

func (s *RepositoryIntegrationTestSuite) TearDownTest() {
	for _, name := range []string{rollsCollection, batchesCollection, landedCostsCollection, "outbox_events"} {
		_ = s.client.Database().Collection(name).Drop(s.ctx)
	}
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func TestRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) newRoll(skuID string, length float64, receivedAt time.Time) *domain.Roll {
	s.sequence++
	roll, err := domain.NewRoll(domain.NewRollParams{
		SupplierID:      "supplier-1",
		SupplierCode:    "AHM",
		BatchID:         "batch-1",
		BatchCode:       "L1",
		SKUID:           skuID,
		Sequence:        s.sequence,
		ReceivedAt:      receivedAt,
		WidthInches:     58,
		Length:          length,
		BaseCostPerUnit: decimal.RequireFromString("2.5"),
		Source:          domain.SourceRefs{GoodsReceiptID: "grn-1"},
	})
	s.Require().NoError(err)
	return roll
}

func (s *RepositoryIntegrationTestSuite) TestInsert_StoresRollsAndEvents() {
	roll := s.newRoll("sku-1", 120, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	s.Require().NoError(s.rollRepo.Insert(s.ctx, roll))
	s.Equal(int64(1), roll.Version)
	s.Empty(roll.GetDomainEvents())

	found, err := s.rollRepo.FindByID(s.ctx, roll.ID)
	s.Require().NoError(err)
	s.Equal(roll.RollNumber, found.RollNumber)
	s.True(decimal.RequireFromString("2.5").Equal(found.BaseCostPerUnit))
	s.Equal(domain.RollStatusMapped, found.Status)

	byBarcode, err := s.rollRepo.FindByBarcode(s.ctx, roll.Barcode)
	s.Require().NoError(err)
	s.Equal(roll.ID, byBarcode.ID)

	events, err := s.outboxRepo.FindByAggregateID(s.ctx, roll.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(cloudevents.RollReceived, events[0].EventType)
}

func (s *RepositoryIntegrationTestSuite) TestInsert_DuplicateRollNumberWritesNothing() {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	first := s.newRoll("sku-1", 100, at)
	s.Require().NoError(s.rollRepo.Insert(s.ctx, first))

	fresh := s.newRoll("sku-1", 100, at)
	clash := s.newRoll("sku-1", 100, at)
	clash.RollNumber = first.RollNumber

	err := s.rollRepo.Insert(s.ctx, fresh, clash)
	s.ErrorIs(err, domain.ErrConcurrentModification)

	_, err = s.rollRepo.FindByID(s.ctx, fresh.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositoryIntegrationTestSuite) TestUpdate_StaleVersionLoses() {
	roll := s.newRoll("sku-1", 100, time.Now())
	s.Require().NoError(s.rollRepo.Insert(s.ctx, roll))

	a, err := s.rollRepo.FindByID(s.ctx, roll.ID)
	s.Require().NoError(err)
	b, err := s.rollRepo.FindByID(s.ctx, roll.ID)
	s.Require().NoError(err)

	s.Require().NoError(a.Allocate("SO-1/1", "alice", time.Now()))
	s.Require().NoError(s.rollRepo.Update(s.ctx, a))
	s.Equal(int64(2), a.Version)

	s.Require().NoError(b.Allocate("SO-2/1", "bob", time.Now()))
	s.ErrorIs(s.rollRepo.Update(s.ctx, b), domain.ErrConcurrentModification)

	stored, err := s.rollRepo.FindByID(s.ctx, roll.ID)
	s.Require().NoError(err)
	s.Equal("SO-1/1", stored.Allocation.OrderLineRef)
}

func (s *RepositoryIntegrationTestSuite) TestUpdate_ConcurrentAllocationsHaveOneWinner() {
	roll := s.newRoll("sku-1", 100, time.Now())
	s.Require().NoError(s.rollRepo.Insert(s.ctx, roll))

	const writers = 5
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.rollRepo.FindByID(s.ctx, roll.ID)
			if err != nil {
				results <- err
				return
			}
			if err := r.Allocate("SO-9/1", "worker", time.Now()); err != nil {
				results <- err
				return
			}
			results <- s.rollRepo.Update(s.ctx, r)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		}
	}
	s.Equal(1, wins)
}

func (s *RepositoryIntegrationTestSuite) TestFindAvailable_FIFOAndLength() {
	old := s.newRoll("sku-1", 50, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	mid := s.newRoll("sku-1", 10, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	recent := s.newRoll("sku-1", 50, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	other := s.newRoll("sku-2", 50, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.rollRepo.Insert(s.ctx, recent, other, mid, old))

	rolls, err := s.rollRepo.FindAvailable(s.ctx, "sku-1", 20)
	s.Require().NoError(err)
	s.Require().Len(rolls, 2)
	s.Equal(old.ID, rolls[0].ID)
	s.Equal(recent.ID, rolls[1].ID)
}

func (s *RepositoryIntegrationTestSuite) TestMaxSequence() {
	at := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	first := s.newRoll("sku-1", 50, at)
	second := s.newRoll("sku-1", 50, at)
	s.Require().NoError(s.rollRepo.Insert(s.ctx, first, second))

	highest, err := s.rollRepo.MaxSequence(s.ctx, first.SequenceKey)
	s.Require().NoError(err)
	s.Equal(second.Sequence, highest)

	none, err := s.rollRepo.MaxSequence(s.ctx, "2505-XYZ-B1")
	s.Require().NoError(err)
	s.Zero(none)
}

func (s *RepositoryIntegrationTestSuite) TestTransaction_RollsBackEveryWrite() {
	roll := s.newRoll("sku-1", 50, time.Now())
	batch, err := domain.NewBatch("supplier-1", "L1", "", time.Now())
	s.Require().NoError(err)

	err = s.txManager.WithinTransaction(s.ctx, func(ctx context.Context) error {
		if err := s.batchRepo.Save(ctx, batch); err != nil {
			return err
		}
		if err := s.rollRepo.Insert(ctx, roll); err != nil {
			return err
		}
		return domain.NewValidationError("lines", "forced failure")
	})
	s.ErrorIs(err, domain.ErrValidation)

	_, err = s.batchRepo.FindByID(s.ctx, batch.ID)
	s.ErrorIs(err, domain.ErrNotFound)
	_, err = s.rollRepo.FindByID(s.ctx, roll.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositoryIntegrationTestSuite) TestLandedCost_SaveAndAllocateOnce() {
	entry, err := domain.NewLandedCostEntry("", "grn-1", "pi-1", domain.CostTypeFreight, domain.BasisMeter,
		decimal.NewFromInt(900), "sea freight")
	s.Require().NoError(err)
	s.Require().NoError(s.costRepo.Save(s.ctx, entry))

	stale := *entry
	s.Require().NoError(entry.MarkAllocated("alice", time.Now()))
	s.Require().NoError(s.costRepo.Save(s.ctx, entry))

	s.Require().NoError(stale.MarkAllocated("bob", time.Now()))
	s.ErrorIs(s.costRepo.Save(s.ctx, &stale), domain.ErrConcurrentModification)

	entries, err := s.costRepo.FindByReceivingEvent(s.ctx, "grn-1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.True(entries[0].Allocated)
	s.Equal("alice", entries[0].AllocatedBy)
	s.True(decimal.NewFromInt(900).Equal(entries[0].Amount))
}
