package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEntry(t *testing.T, basis CostBasis, amount string) *LandedCostEntry {
	t.Helper()
	e, err := NewLandedCostEntry("", "grn-1", "pi-1", CostTypeFreight, basis, decimal.RequireFromString(amount), "")
	require.NoError(t, err)
	return e
}

func sumShares(shares []CostShare) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.Amount)
	}
	return total
}

func TestAllocateCost_MeterExample(t *testing.T) {
	rolls := []*Roll{
		newTestRoll(t, "sku-x", 100, receivedMarch),
		newTestRoll(t, "sku-x", 200, receivedMarch),
		newTestRoll(t, "sku-x", 300, receivedMarch),
	}

	shares := AllocateCost(mustEntry(t, BasisMeter, "900"), rolls)
	require.Len(t, shares, 3)
	assert.Equal(t, "150", shares[0].Amount.String())
	assert.Equal(t, "300", shares[1].Amount.String())
	assert.Equal(t, "450", shares[2].Amount.String())
}

func TestAllocateCost_ConservesAmountForEveryBasis(t *testing.T) {
	rolls := []*Roll{
		newTestRoll(t, "sku-x", 33.3, receivedMarch),
		newTestRoll(t, "sku-x", 71, receivedMarch),
		newTestRoll(t, "sku-x", 12.25, receivedMarch),
	}
	rolls[1].LineValue = decimal.RequireFromString("1999.99")

	for _, basis := range []CostBasis{BasisRoll, BasisMeter, BasisValue} {
		for _, amount := range []string{"100", "0.0001", "1234.5678", "1000000"} {
			t.Run(string(basis)+"_"+amount, func(t *testing.T) {
				entry := mustEntry(t, basis, amount)
				shares := AllocateCost(entry, rolls)
				assert.True(t, sumShares(shares).Equal(entry.Amount),
					"shares sum to %s, want %s", sumShares(shares), entry.Amount)
			})
		}
	}
}

func TestAllocateCost_ResidualGoesToLargestBasis(t *testing.T) {
	rolls := []*Roll{
		newTestRoll(t, "sku-x", 10, receivedMarch),
		newTestRoll(t, "sku-x", 10, receivedMarch),
		newTestRoll(t, "sku-x", 10, receivedMarch),
	}

	shares := AllocateCost(mustEntry(t, BasisRoll, "100"), rolls)
	require.Len(t, shares, 3)
	assert.Equal(t, "33.3334", shares[0].Amount.String())
	assert.Equal(t, "33.3333", shares[1].Amount.String())
	assert.Equal(t, "33.3333", shares[2].Amount.String())
}

func TestAllocateCost_ZeroBasisContributesNothing(t *testing.T) {
	r := newTestRoll(t, "sku-x", 10, receivedMarch)
	r.CurrentLength = 0

	assert.Empty(t, AllocateCost(mustEntry(t, BasisMeter, "50"), []*Roll{r}))
	assert.Empty(t, AllocateCost(mustEntry(t, BasisMeter, "50"), nil))
}

func TestAllocateCost_SkipsZeroBasisRolls(t *testing.T) {
	empty := newTestRoll(t, "sku-x", 10, receivedMarch)
	empty.CurrentLength = 0
	full := newTestRoll(t, "sku-x", 40, receivedMarch)

	shares := AllocateCost(mustEntry(t, BasisMeter, "80"), []*Roll{empty, full})
	require.Len(t, shares, 1)
	assert.Equal(t, full.ID, shares[0].RollID)
	assert.Equal(t, "80", shares[0].Amount.String())
}

func TestBasisWeight(t *testing.T) {
	r := newTestRoll(t, "sku-x", 120, receivedMarch)
	r.LineValue = decimal.RequireFromString("845.50")

	assert.Equal(t, "1", BasisWeight(BasisRoll, r).String())
	assert.Equal(t, "120", BasisWeight(BasisMeter, r).String())
	assert.Equal(t, "845.5", BasisWeight(BasisValue, r).String())
	assert.True(t, BasisWeight(CostBasis("WEIGHT"), r).IsZero())
}

func TestLandedCostEntry_Validation(t *testing.T) {
	_, err := NewLandedCostEntry("", "", "", CostTypeDuty, BasisRoll, decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLandedCostEntry("", "grn-1", "", CostType("bribe"), BasisRoll, decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLandedCostEntry("", "grn-1", "", CostTypeDuty, CostBasis("WEIGHT"), decimal.NewFromInt(1), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLandedCostEntry("", "grn-1", "", CostTypeDuty, BasisRoll, decimal.Zero, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLandedCostEntry_MarkAllocatedOnce(t *testing.T) {
	e := mustEntry(t, BasisRoll, "10")

	require.NoError(t, e.MarkAllocated("alice", time.Now()))
	assert.True(t, e.Allocated)
	assert.NotNil(t, e.AllocatedAt)
	assert.ErrorIs(t, e.MarkAllocated("alice", time.Now()), ErrStateConflict)
}

func TestParseCostBasisAndType(t *testing.T) {
	b, err := ParseCostBasis("meter")
	require.NoError(t, err)
	assert.Equal(t, BasisMeter, b)

	ct, err := ParseCostType("Clearing")
	require.NoError(t, err)
	assert.Equal(t, CostTypeClearing, ct)

	_, err = ParseCostBasis("kg")
	assert.ErrorIs(t, err, ErrValidation)
}
