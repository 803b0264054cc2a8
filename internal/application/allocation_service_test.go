package application

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/errors"
)

func TestAllocate_ScenarioAThenBThenShortage(t *testing.T) {
	f := newFixture(t)
	a := f.receive(t, "sku-x", jan, 1000)[0]
	b := f.receive(t, "sku-x", feb, 1000)[0]

	cmd := AllocateCommand{SKUID: "sku-x", RequiredCount: 1, MinLength: 500, OrderLineRef: "SO-1/1", Actor: "sales"}

	first, err := f.allocation.Allocate(f.ctx, cmd)
	require.NoError(t, err)
	require.Len(t, first.Rolls, 1)
	assert.Equal(t, a.ID, first.Rolls[0].ID)
	assert.Equal(t, "allocated", first.Rolls[0].Status)
	assert.Equal(t, "SO-1/1", first.Rolls[0].OrderLineRef)

	second, err := f.allocation.Allocate(f.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, b.ID, second.Rolls[0].ID)

	_, err = f.allocation.Allocate(f.ctx, cmd)
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, "1", appErr.Details["required"])
	assert.Equal(t, "0", appErr.Details["available"])
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestAllocate_FIFOSkipsShortAndOtherSKU(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "sku-x", jan, 40)
	oldest := f.receive(t, "sku-x", feb, 200)[0]
	f.receive(t, "sku-x", mar, 200)

	result, err := f.allocation.Allocate(f.ctx, AllocateCommand{
		SKUID: "sku-x", RequiredCount: 1, MinLength: 50, OrderLineRef: "SO-2/1",
	})
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, result.Rolls[0].ID)
}

func TestAllocate_ShortageLeavesPoolUnchanged(t *testing.T) {
	f := newFixture(t)
	rolls := f.receive(t, "sku-x", jan, 100, 100, 100)

	_, err := f.allocation.Allocate(f.ctx, AllocateCommand{
		SKUID: "sku-x", RequiredCount: 4, OrderLineRef: "SO-3/1",
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInsufficientStock))

	for _, r := range rolls {
		stored, err := f.rolls.FindByID(f.ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RollStatusMapped, stored.Status)
		assert.Nil(t, stored.Allocation)
		assert.Equal(t, r.Version, stored.Version)
	}
}

func TestAllocate_ConcurrentCallsClaimEachRollOnce(t *testing.T) {
	const n = 12
	f := newFixture(t)
	lengths := make([]float64, n)
	for i := range lengths {
		lengths[i] = 100
	}
	f.receive(t, "sku-x", jan, lengths...)

	var wg sync.WaitGroup
	claims := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.allocation.Allocate(f.ctx, AllocateCommand{
				SKUID:         "sku-x",
				RequiredCount: 1,
				OrderLineRef:  fmt.Sprintf("SO-%d/1", i),
			})
			if err != nil {
				errs <- err
				return
			}
			claims <- result.Rolls[0].ID
		}(i)
	}
	wg.Wait()
	close(claims)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected allocation error: %v", err)
	}
	seen := make(map[string]bool)
	for id := range claims {
		assert.False(t, seen[id], "roll %s claimed twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	remaining, err := f.rolls.FindAvailable(f.ctx, "sku-x", 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestAllocate_SameOrderLineTwiceAddsRolls(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "sku-x", jan, 100, 100)

	cmd := AllocateCommand{SKUID: "sku-x", RequiredCount: 1, OrderLineRef: "SO-4/1"}
	_, err := f.allocation.Allocate(f.ctx, cmd)
	require.NoError(t, err)
	_, err = f.allocation.Allocate(f.ctx, cmd)
	require.NoError(t, err)

	held, err := f.rolls.FindAllocatedTo(f.ctx, "SO-4/1")
	require.NoError(t, err)
	assert.Len(t, held, 2)
}

func TestAllocate_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []AllocateCommand{
		{SKUID: "", RequiredCount: 1, OrderLineRef: "SO"},
		{SKUID: "sku-x", RequiredCount: 0, OrderLineRef: "SO"},
		{SKUID: "sku-x", RequiredCount: 1, MinLength: -1, OrderLineRef: "SO"},
		{SKUID: "sku-x", RequiredCount: 1},
	}
	for _, cmd := range tests {
		_, err := f.allocation.Allocate(f.ctx, cmd)
		assert.True(t, errors.HasCode(err, errors.CodeValidationError), "%+v", cmd)
	}
}

func TestDeallocate_ReturnsRollsToStock(t *testing.T) {
	f := newFixture(t)
	f.receive(t, "sku-x", jan, 100, 100, 100)

	_, err := f.allocation.Allocate(f.ctx, AllocateCommand{SKUID: "sku-x", RequiredCount: 2, OrderLineRef: "SO-5/1"})
	require.NoError(t, err)

	result, err := f.allocation.Deallocate(f.ctx, DeallocateCommand{OrderLineRef: "SO-5/1", Actor: "sales"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Released)

	available, err := f.rolls.FindAvailable(f.ctx, "sku-x", 0)
	require.NoError(t, err)
	assert.Len(t, available, 3)

	again, err := f.allocation.Deallocate(f.ctx, DeallocateCommand{OrderLineRef: "SO-5/1"})
	require.NoError(t, err)
	assert.Zero(t, again.Released)
}

func TestAllocate_WritesOutboxEvents(t *testing.T) {
	f := newFixture(t)
	roll := f.receive(t, "sku-x", jan, 100)[0]

	_, err := f.allocation.Allocate(f.ctx, AllocateCommand{SKUID: "sku-x", RequiredCount: 1, OrderLineRef: "SO-6/1"})
	require.NoError(t, err)

	events, err := f.outbox.FindByAggregateID(f.ctx, roll.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "textile.roll.received", events[0].EventType)
	assert.Equal(t, "textile.roll.allocated", events[1].EventType)
}
