package catalogseed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
suppliers:
  - {id: sup-1, code: ahm-01, name: Ahmed Mills}
gsms:
  - {id: gsm-180, name: "180", value: 180}
qualities:
  - {id: q-prime, name: Prime}
products:
  - {id: prod-1, code: DNM180P, name: Denim 180 Prime, categoryId: cat-denim, gsmId: gsm-180, qualityId: q-prime}
skus:
  - {id: sku-1, productId: prod-1, code: DNM180P-58, widthInches: 58}
`

func TestParse(t *testing.T) {
	seed, err := Parse([]byte(sampleSeed))
	require.NoError(t, err)

	require.Len(t, seed.DomainSuppliers(), 1)
	assert.Equal(t, "AHM01", seed.DomainSuppliers()[0].Code)
	require.Len(t, seed.DomainProducts(), 1)
	assert.Equal(t, "cat-denim", seed.DomainProducts()[0].CategoryID)
	require.Len(t, seed.DomainSKUs(), 1)
	assert.Equal(t, 58, int(seed.DomainSKUs()[0].WidthInches))
}

func TestParse_RejectsDanglingReferences(t *testing.T) {
	_, err := Parse([]byte(`
gsms: [{id: gsm-180, name: "180"}]
products: [{id: prod-1, gsmId: gsm-180, qualityId: missing}]
`))
	assert.ErrorContains(t, err, "unknown quality")

	_, err = Parse([]byte(`
gsms: [{id: g, name: "1"}]
qualities: [{id: q, name: Q}]
products: [{id: p, gsmId: g, qualityId: q}]
skus: [{id: s, productId: p, widthInches: 57}]
`))
	assert.ErrorContains(t, err, "width 57")
}
