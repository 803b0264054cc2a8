package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/errors"
)

// shipped receives rolls of the given lengths, allocates and dispatches them
func (f *fixture) shipped(t *testing.T, lengths ...float64) []*RollDTO {
	t.Helper()
	f.receive(t, "sku-x", jan, lengths...)
	allocated, err := f.allocation.Allocate(f.ctx, AllocateCommand{
		SKUID: "sku-x", RequiredCount: len(lengths), OrderLineRef: "SO-10/1",
	})
	require.NoError(t, err)

	ids := make([]string, len(allocated.Rolls))
	for i, r := range allocated.Rolls {
		ids[i] = r.ID
	}
	result, err := f.fulfillment.Dispatch(f.ctx, DispatchCommand{ShipmentRef: "SHP-1", RollIDs: ids, Actor: "dock"})
	require.NoError(t, err)
	return result.Rolls
}

func TestDispatch_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	rolls := f.receive(t, "sku-x", jan, 100, 100)
	_, err := f.allocation.Allocate(f.ctx, AllocateCommand{SKUID: "sku-x", RequiredCount: 1, OrderLineRef: "SO-1/1"})
	require.NoError(t, err)

	// rolls[0] is allocated, rolls[1] is still mapped
	_, err = f.fulfillment.Dispatch(f.ctx, DispatchCommand{
		ShipmentRef: "SHP-1",
		RollIDs:     []string{rolls[0].ID, rolls[1].ID},
	})
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeStateConflict, appErr.Code)
	assert.Equal(t, rolls[1].ID, appErr.Details["rollId"])
	assert.Equal(t, "mapped", appErr.Details["actual"])

	first, err := f.rolls.FindByID(f.ctx, rolls[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RollStatusAllocated, first.Status)
	assert.Nil(t, first.Shipment)
}

func TestDispatch_UnknownRoll(t *testing.T) {
	f := newFixture(t)
	rolls := f.receive(t, "sku-x", jan, 100)
	_, err := f.allocation.Allocate(f.ctx, AllocateCommand{SKUID: "sku-x", RequiredCount: 1, OrderLineRef: "SO-1/1"})
	require.NoError(t, err)

	_, err = f.fulfillment.Dispatch(f.ctx, DispatchCommand{
		ShipmentRef: "SHP-1",
		RollIDs:     []string{rolls[0].ID, "no-such-roll"},
	})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestDispatch_DeduplicatesIDs(t *testing.T) {
	f := newFixture(t)
	rolls := f.receive(t, "sku-x", jan, 100)
	_, err := f.allocation.Allocate(f.ctx, AllocateCommand{SKUID: "sku-x", RequiredCount: 1, OrderLineRef: "SO-1/1"})
	require.NoError(t, err)

	result, err := f.fulfillment.Dispatch(f.ctx, DispatchCommand{
		ShipmentRef: "SHP-1",
		RollIDs:     []string{rolls[0].ID, rolls[0].ID},
	})
	require.NoError(t, err)
	require.Len(t, result.Rolls, 1)
	assert.Equal(t, "dispatched", result.Rolls[0].Status)
	assert.Equal(t, "SHP-1", result.Rolls[0].ShipmentRef)
	assert.Equal(t, "SO-1/1", result.Rolls[0].OrderLineRef)
}

func TestReturnRoll_SpawnsRemainder(t *testing.T) {
	f := newFixture(t)
	roll := f.shipped(t, 100)[0]

	result, err := f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{
		RollID:          roll.ID,
		RemainingLength: 35.5,
		Reason:          "customer cut short",
		Actor:           "returns",
	})
	require.NoError(t, err)

	retired, spawned := result.RetiredRoll, result.SpawnedRoll
	assert.Equal(t, "returned", retired.Status)
	assert.Zero(t, retired.CurrentLength)
	require.NotNil(t, spawned)
	assert.Equal(t, spawned.ID, retired.SpawnedRollID)

	assert.Equal(t, "mapped", spawned.Status)
	assert.Equal(t, roll.ID, spawned.ParentRollID)
	assert.Equal(t, 35.5, spawned.CurrentLength)
	assert.Equal(t, 35.5, spawned.OriginalLength)
	assert.LessOrEqual(t, retired.CurrentLength+spawned.CurrentLength, roll.OriginalLength)
	assert.Equal(t, "sku-x", spawned.SKUID)
	assert.Equal(t, roll.BatchID, spawned.BatchID)
	assert.Equal(t, "2501-AHM-L1-0002", spawned.RollNumber)
	assert.True(t, roll.LandedCostPerUnit.Equal(spawned.LandedCostPerUnit))
	assert.True(t, domain.VerifyBarcode(spawned.Barcode, spawned.ID))

	// the remainder is stock again
	available, err := f.rolls.FindAvailable(f.ctx, "sku-x", 30)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, spawned.ID, available[0].ID)
}

func TestReturnRoll_NoRemainderAtOrBelowMinimum(t *testing.T) {
	for _, remaining := range []float64{0, 0.5, DefaultMinUsableLength} {
		f := newFixture(t)
		roll := f.shipped(t, 100)[0]

		result, err := f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{
			RollID: roll.ID, RemainingLength: remaining, Reason: "damaged",
		})
		require.NoError(t, err)
		assert.Equal(t, "returned", result.RetiredRoll.Status)
		assert.Nil(t, result.SpawnedRoll, "remaining %v", remaining)
	}
}

func TestReturnRoll_Rejections(t *testing.T) {
	f := newFixture(t)
	roll := f.shipped(t, 100)[0]
	mapped := f.receive(t, "sku-x", feb, 100)[0]

	_, err := f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{RollID: roll.ID, RemainingLength: 150, Reason: "x"})
	assert.True(t, errors.HasCode(err, errors.CodeValidationError))

	_, err = f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{RollID: mapped.ID, RemainingLength: 10, Reason: "x"})
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))

	_, err = f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{RollID: "missing", RemainingLength: 10, Reason: "x"})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	_, err = f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{RollID: roll.ID, RemainingLength: 10})
	assert.True(t, errors.HasCode(err, errors.CodeValidationError))

	stored, err := f.rolls.FindByID(f.ctx, roll.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RollStatusDispatched, stored.Status)
	assert.Equal(t, 100.0, stored.CurrentLength)
}

func TestReturnRoll_IllegalStatusIsStateConflict(t *testing.T) {
	f := newFixture(t)
	roll := f.shipped(t, 100)[0]
	mapped := f.receive(t, "sku-x", feb, 100)[0]

	_, err := f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{RollID: roll.ID, RemainingLength: 40, Reason: "cut short"})
	require.NoError(t, err)

	// the retired roll has zero length, the status still decides
	_, err = f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{RollID: roll.ID, RemainingLength: 40, Reason: "again"})
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict), "got %v", err)

	_, err = f.fulfillment.ReturnRoll(f.ctx, ReturnRollCommand{RollID: mapped.ID, RemainingLength: 150, Reason: "x"})
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict), "got %v", err)

	stored, err := f.rolls.FindByID(f.ctx, roll.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RollStatusReturned, stored.Status)
	assert.Equal(t, 40.0, stored.ReturnInfo.RemainingLength)
}

func TestScrap(t *testing.T) {
	f := newFixture(t)
	rolls := f.receive(t, "sku-x", jan, 100, 100)
	_, err := f.allocation.Allocate(f.ctx, AllocateCommand{SKUID: "sku-x", RequiredCount: 1, OrderLineRef: "SO-1/1"})
	require.NoError(t, err)

	scrapped, err := f.fulfillment.Scrap(f.ctx, ScrapCommand{RollID: rolls[0].ID, Reason: "mildew", Actor: "qa"})
	require.NoError(t, err)
	assert.Equal(t, "scrap", scrapped.Status)
	assert.Equal(t, "mildew", scrapped.ScrapReason)

	_, err = f.fulfillment.Scrap(f.ctx, ScrapCommand{RollID: rolls[0].ID, Reason: "again"})
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))

	_, err = f.fulfillment.Scrap(f.ctx, ScrapCommand{RollID: rolls[1].ID})
	assert.True(t, errors.HasCode(err, errors.CodeValidationError))
}
