package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSequence int

func newTestRoll(t *testing.T, skuID string, length float64, receivedAt time.Time) *Roll {
	t.Helper()
	testSequence++
	r, err := NewRoll(NewRollParams{
		SupplierID:      "supplier-1",
		SupplierCode:    "AHM",
		BatchID:         "batch-1",
		BatchCode:       "L1",
		SKUID:           skuID,
		Sequence:        testSequence,
		ReceivedAt:      receivedAt,
		WidthInches:     58,
		Length:          length,
		BaseCostPerUnit: decimal.NewFromInt(2),
		Source:          SourceRefs{GoodsReceiptID: "grn-1"},
	})
	require.NoError(t, err)
	r.ClearDomainEvents()
	return r
}

func TestNewRoll_StatusFollowsSKU(t *testing.T) {
	mapped := newTestRoll(t, "sku-x", 100, receivedMarch)
	assert.Equal(t, RollStatusMapped, mapped.Status)
	assert.NotNil(t, mapped.MappedAt)

	unmapped := newTestRoll(t, "", 100, receivedMarch)
	assert.Equal(t, RollStatusUnmapped, unmapped.Status)
	assert.Nil(t, unmapped.MappedAt)
}

func TestNewRoll_Identity(t *testing.T) {
	r, err := NewRoll(NewRollParams{
		SupplierID:   "supplier-1",
		SupplierCode: "ahm",
		BatchCode:    "l-1",
		Sequence:     5,
		ReceivedAt:   receivedMarch,
		WidthInches:  60,
		Length:       120.5,
		GenerateQR:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "2503-AHM-L1-0005", r.RollNumber)
	assert.Equal(t, "2503-AHM-L1", r.SequenceKey)
	assert.True(t, VerifyBarcode(r.Barcode, r.ID))
	assert.Equal(t, r.Identity().Barcode(r.ID), r.Barcode)
	assert.Contains(t, r.QRPayload, r.ID)
	require.Len(t, r.DomainEvents, 1)
	assert.Equal(t, "textile.roll.received", r.DomainEvents[0].EventType())
	require.NoError(t, r.Validate())
}

func TestNewRoll_Validation(t *testing.T) {
	base := NewRollParams{SupplierID: "s", Sequence: 1, WidthInches: 58, Length: 10}

	tests := map[string]func(p *NewRollParams){
		"missing supplier": func(p *NewRollParams) { p.SupplierID = "" },
		"bad width":        func(p *NewRollParams) { p.WidthInches = 57 },
		"zero length":      func(p *NewRollParams) { p.Length = 0 },
		"negative length":  func(p *NewRollParams) { p.Length = -3 },
		"zero sequence":    func(p *NewRollParams) { p.Sequence = 0 },
		"negative cost":    func(p *NewRollParams) { p.BaseCostPerUnit = decimal.NewFromInt(-1) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			_, err := NewRoll(p)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNewRoll_DefaultsLineValueAndLandedCost(t *testing.T) {
	r := newTestRoll(t, "sku-x", 150, receivedMarch)

	assert.True(t, r.LineValue.Equal(decimal.NewFromInt(300)))
	assert.True(t, r.LandedCostPerUnit.Equal(decimal.NewFromInt(2)))
	assert.True(t, r.TotalLandedCost.Equal(decimal.NewFromInt(300)))
	assert.True(t, r.AllocatedCost.IsZero())
}

func TestRoll_Lifecycle(t *testing.T) {
	r := newTestRoll(t, "", 500, receivedMarch)
	at := receivedMarch.Add(24 * time.Hour)

	require.NoError(t, r.Classify("sku-x", "alice", at))
	assert.Equal(t, RollStatusMapped, r.Status)
	assert.Equal(t, "sku-x", r.SKUID)

	require.NoError(t, r.Allocate("SO-9/2", "bob", at))
	assert.Equal(t, RollStatusAllocated, r.Status)
	require.NotNil(t, r.Allocation)
	assert.Equal(t, "SO-9/2", r.Allocation.OrderLineRef)
	require.NoError(t, r.Validate())

	require.NoError(t, r.Dispatch("SHP-1", "carol", at))
	assert.Equal(t, RollStatusDispatched, r.Status)
	assert.NotNil(t, r.Allocation)
	assert.Equal(t, "SHP-1", r.Shipment.ShipmentRef)
	require.NoError(t, r.Validate())

	require.NoError(t, r.Return(120, "short shipment", "dave", at))
	assert.Equal(t, RollStatusReturned, r.Status)
	assert.Zero(t, r.CurrentLength)
	assert.Equal(t, 120.0, r.ReturnInfo.RemainingLength)
	require.NoError(t, r.Validate())

	types := make([]string, len(r.DomainEvents))
	for i, e := range r.DomainEvents {
		types[i] = e.EventType()
	}
	assert.Equal(t, []string{
		"textile.roll.classified",
		"textile.roll.allocated",
		"textile.roll.dispatched",
		"textile.roll.returned",
	}, types)
}

func TestRoll_IllegalTransitions(t *testing.T) {
	r := newTestRoll(t, "sku-x", 100, receivedMarch)

	err := r.Dispatch("SHP-1", "bob", time.Now())
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, RollStatusMapped, conflict.Actual)
	assert.Equal(t, []RollStatus{RollStatusAllocated}, conflict.Expected)
	assert.Equal(t, RollStatusMapped, r.Status)
	assert.Nil(t, r.Shipment)

	require.NoError(t, r.Allocate("SO-1/1", "bob", time.Now()))
	assert.ErrorIs(t, r.Classify("sku-y", "bob", time.Now()), ErrStateConflict)
	assert.Equal(t, "sku-x", r.SKUID)
}

func TestRoll_Deallocate(t *testing.T) {
	r := newTestRoll(t, "sku-x", 100, receivedMarch)
	require.NoError(t, r.Allocate("SO-1/1", "bob", time.Now()))

	require.NoError(t, r.Deallocate("bob", time.Now()))
	assert.Equal(t, RollStatusMapped, r.Status)
	assert.Nil(t, r.Allocation)

	assert.ErrorIs(t, r.Deallocate("bob", time.Now()), ErrStateConflict)
}

func TestRoll_Scrap(t *testing.T) {
	r := newTestRoll(t, "sku-x", 100, receivedMarch)

	assert.ErrorIs(t, r.Scrap("", "bob", time.Now()), ErrValidation)
	require.NoError(t, r.Scrap("water damage", "bob", time.Now()))
	assert.Equal(t, RollStatusScrap, r.Status)
	assert.Equal(t, RollStatusMapped, r.ScrapInfo.FromStatus)

	assert.ErrorIs(t, r.Scrap("again", "bob", time.Now()), ErrStateConflict)
}

func TestRoll_ScrapRejectedAfterDispatch(t *testing.T) {
	r := newTestRoll(t, "sku-x", 100, receivedMarch)
	require.NoError(t, r.Allocate("SO-1/1", "bob", time.Now()))
	require.NoError(t, r.Dispatch("SHP-1", "bob", time.Now()))

	assert.ErrorIs(t, r.Scrap("lost", "bob", time.Now()), ErrStateConflict)
}

func TestRoll_ReturnValidation(t *testing.T) {
	r := newTestRoll(t, "sku-x", 100, receivedMarch)
	require.NoError(t, r.Allocate("SO-1/1", "bob", time.Now()))
	require.NoError(t, r.Dispatch("SHP-1", "bob", time.Now()))

	assert.ErrorIs(t, r.Return(101, "too long", "bob", time.Now()), ErrValidation)
	assert.ErrorIs(t, r.Return(-1, "negative", "bob", time.Now()), ErrValidation)
	assert.ErrorIs(t, r.Return(10, "", "bob", time.Now()), ErrValidation)
	assert.Equal(t, RollStatusDispatched, r.Status)
	assert.Equal(t, 100.0, r.CurrentLength)
}

func TestRoll_ReturnStatusCheckedBeforeLength(t *testing.T) {
	mapped := newTestRoll(t, "sku-x", 100, receivedMarch)
	err := mapped.Return(150, "wrong roll", "bob", time.Now())
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NotErrorIs(t, err, ErrValidation)

	returned := newTestRoll(t, "sku-x", 100, receivedMarch)
	require.NoError(t, returned.Allocate("SO-1/1", "bob", time.Now()))
	require.NoError(t, returned.Dispatch("SHP-1", "bob", time.Now()))
	require.NoError(t, returned.Return(40, "cut short", "bob", time.Now()))

	err = returned.Return(40, "again", "bob", time.Now())
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, 40.0, returned.ReturnInfo.RemainingLength)
}

func TestRoll_StatusCheckedBeforeArguments(t *testing.T) {
	scrapped := newTestRoll(t, "sku-x", 100, receivedMarch)
	require.NoError(t, scrapped.Scrap("water damage", "bob", time.Now()))

	for name, op := range map[string]func(r *Roll) error{
		"classify": func(r *Roll) error { return r.Classify("", "bob", time.Now()) },
		"allocate": func(r *Roll) error { return r.Allocate("", "bob", time.Now()) },
		"dispatch": func(r *Roll) error { return r.Dispatch("", "bob", time.Now()) },
		"return":   func(r *Roll) error { return r.Return(-1, "", "bob", time.Now()) },
		"scrap":    func(r *Roll) error { return r.Scrap("", "bob", time.Now()) },
	} {
		t.Run(name, func(t *testing.T) {
			err := op(scrapped)
			assert.ErrorIs(t, err, ErrStateConflict)
			assert.NotErrorIs(t, err, ErrValidation)
			assert.Equal(t, RollStatusScrap, scrapped.Status)
		})
	}
}

func TestNewSpawnedRoll_ConservesLength(t *testing.T) {
	parent := newTestRoll(t, "sku-x", 400, receivedMarch)
	require.True(t, parent.ApplyLandedCost("freight-1", decimal.NewFromInt(40), time.Now()))
	require.NoError(t, parent.Allocate("SO-1/1", "bob", time.Now()))
	require.NoError(t, parent.Dispatch("SHP-1", "bob", time.Now()))
	require.NoError(t, parent.Return(150, "cut short", "bob", time.Now()))
	require.True(t, parent.ShouldSpawnRemainder(1.0))

	child, err := NewSpawnedRoll(parent, parent.Sequence+1000, 150, time.Now())
	require.NoError(t, err)

	assert.Equal(t, RollStatusMapped, child.Status)
	assert.Equal(t, parent.ID, child.ParentRollID)
	assert.Equal(t, child.ID, parent.ReturnInfo.SpawnedRollID)
	assert.Equal(t, 150.0, child.CurrentLength)
	assert.LessOrEqual(t, parent.CurrentLength+child.CurrentLength, parent.OriginalLength)
	assert.Equal(t, parent.SKUID, child.SKUID)
	assert.Equal(t, parent.WidthInches, child.WidthInches)
	assert.True(t, child.LandedCostPerUnit.Equal(parent.LandedCostPerUnit))
	assert.Equal(t, parent.SequenceKey, child.SequenceKey)
	assert.NotEqual(t, parent.RollNumber, child.RollNumber)
	require.NoError(t, child.Validate())
	require.NoError(t, parent.Validate())

	_, err = NewSpawnedRoll(parent, parent.Sequence+1001, 151, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewSpawnedRoll_RequiresReturnedParent(t *testing.T) {
	parent := newTestRoll(t, "sku-x", 400, receivedMarch)

	_, err := NewSpawnedRoll(parent, 99, 10, time.Now())
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestRoll_ShouldSpawnRemainderIsExclusive(t *testing.T) {
	r := newTestRoll(t, "sku-x", 100, receivedMarch)
	require.NoError(t, r.Allocate("SO-1/1", "bob", time.Now()))
	require.NoError(t, r.Dispatch("SHP-1", "bob", time.Now()))
	require.NoError(t, r.Return(1.0, "offcut", "bob", time.Now()))

	assert.False(t, r.ShouldSpawnRemainder(1.0))
	assert.True(t, r.ShouldSpawnRemainder(0.5))
}

func TestRoll_ApplyLandedCost(t *testing.T) {
	r := newTestRoll(t, "sku-x", 200, receivedMarch)

	require.True(t, r.ApplyLandedCost("duty-1", decimal.NewFromInt(100), time.Now()))
	assert.True(t, r.AllocatedCost.Equal(decimal.NewFromInt(100)))
	assert.True(t, r.TotalLandedCost.Equal(decimal.NewFromInt(500)))
	assert.True(t, r.LandedCostPerUnit.Equal(decimal.NewFromFloat(2.5)))
	require.Len(t, r.DomainEvents, 1)
}

func TestRoll_ApplyLandedCostAfterDispatchIsInformational(t *testing.T) {
	r := newTestRoll(t, "sku-x", 200, receivedMarch)
	require.NoError(t, r.Allocate("SO-1/1", "bob", time.Now()))
	require.NoError(t, r.Dispatch("SHP-1", "bob", time.Now()))
	r.ClearDomainEvents()
	before := *r

	assert.False(t, r.ApplyLandedCost("duty-1", decimal.NewFromInt(100), time.Now()))
	assert.True(t, r.TotalLandedCost.Equal(before.TotalLandedCost))
	assert.True(t, r.LandedCostPerUnit.Equal(before.LandedCostPerUnit))
	assert.Empty(t, r.DomainEvents)
}

func TestRoll_ValidateDetectsBrokenInvariants(t *testing.T) {
	r := newTestRoll(t, "sku-x", 100, receivedMarch)
	r.CurrentLength = 101
	assert.ErrorIs(t, r.Validate(), ErrValidation)

	r = newTestRoll(t, "sku-x", 100, receivedMarch)
	r.Status = RollStatusAllocated
	assert.ErrorIs(t, r.Validate(), ErrValidation)

	r = newTestRoll(t, "sku-x", 100, receivedMarch)
	r.ID = "someone-else"
	assert.ErrorIs(t, r.Validate(), ErrValidation)
}
