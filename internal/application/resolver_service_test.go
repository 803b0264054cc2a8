package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/errors"
)

func (f *fixture) receiveUnmapped(t *testing.T, widths ...int) []*RollDTO {
	t.Helper()
	items := make([]CreateRollItem, len(widths))
	for i, w := range widths {
		items[i] = CreateRollItem{WidthInches: w, Length: 100}
	}
	result, err := f.receipt.CreateRolls(f.ctx, CreateRollsCommand{
		SupplierID: "sup-kta",
		ReceivedAt: mar,
		Items:      items,
	})
	require.NoError(t, err)
	return result.Rolls
}

func TestResolveUnmapped_BestEffortPerItem(t *testing.T) {
	f := newFixture(t)
	rolls := f.receiveUnmapped(t, 58, 44, 58, 58)
	mapped := f.receive(t, "sku-x", mar, 100)[0]

	result, err := f.resolver.ResolveUnmapped(f.ctx, ResolveUnmappedCommand{
		Mappings: []RollMapping{
			{RollID: rolls[0].ID, Category: "cat-denim", GSMName: "180", QualityName: "prime"},
			{RollID: rolls[1].ID, Category: "cat-denim", GSMName: "180", QualityName: "PRIME"},
			{RollID: rolls[2].ID, Category: "cat-denim", GSMName: "999", QualityName: "Prime"},
			{RollID: mapped.ID, Category: "cat-denim", GSMName: "180", QualityName: "Prime"},
			{RollID: "missing", Category: "cat-denim", GSMName: "180", QualityName: "Prime"},
			{RollID: rolls[3].ID, Category: "cat-silk", GSMName: "180", QualityName: "Prime"},
		},
		Actor: "catalog",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Resolved)
	assert.Equal(t, 4, result.Failed)
	require.Len(t, result.Items, 6)

	existing := result.Items[0]
	assert.True(t, existing.Success)
	assert.Equal(t, "sku-x", existing.SKUID)
	assert.False(t, existing.SKUCreated)

	created := result.Items[1]
	assert.True(t, created.Success)
	assert.True(t, created.SKUCreated)
	sku, err := f.catalog.FindSKU(f.ctx, created.SKUID)
	require.NoError(t, err)
	assert.Equal(t, "DNM180P-44", sku.Code)
	assert.Equal(t, domain.Width(44), sku.WidthInches)

	assert.Equal(t, errors.CodeNotFound, result.Items[2].Code)
	assert.Equal(t, errors.CodeStateConflict, result.Items[3].Code)
	assert.Equal(t, errors.CodeNotFound, result.Items[4].Code)
	assert.Equal(t, errors.CodeNotFound, result.Items[5].Code)

	stored, err := f.rolls.FindByID(f.ctx, rolls[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RollStatusMapped, stored.Status)
	assert.Equal(t, "sku-x", stored.SKUID)
	assert.NotNil(t, stored.MappedAt)
	assert.Equal(t, "180", stored.Descriptors.GSM)

	untouched, err := f.rolls.FindByID(f.ctx, rolls[2].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RollStatusUnmapped, untouched.Status)
}

func TestResolveUnmapped_ReusesCreatedSKU(t *testing.T) {
	f := newFixture(t)
	rolls := f.receiveUnmapped(t, 72, 72)

	result, err := f.resolver.ResolveUnmapped(f.ctx, ResolveUnmappedCommand{
		Mappings: []RollMapping{
			{RollID: rolls[0].ID, Category: "cat-twill", GSMName: "220", QualityName: "second"},
			{RollID: rolls[1].ID, Category: "cat-twill", GSMName: "220", QualityName: "second"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Resolved)
	assert.True(t, result.Items[0].SKUCreated)
	assert.False(t, result.Items[1].SKUCreated)
	assert.Equal(t, result.Items[0].SKUID, result.Items[1].SKUID)
}

func TestResolveUnmapped_IncompleteMappingFailsOnlyThatItem(t *testing.T) {
	f := newFixture(t)
	rolls := f.receiveUnmapped(t, 58, 58)

	result, err := f.resolver.ResolveUnmapped(f.ctx, ResolveUnmappedCommand{
		Mappings: []RollMapping{
			{RollID: rolls[0].ID, Category: "cat-denim", GSMName: "180"},
			{RollID: rolls[1].ID, Category: "cat-denim", GSMName: "180", QualityName: "Prime"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, errors.CodeValidationError, result.Items[0].Code)
	assert.True(t, result.Items[1].Success)
}
