package mongodb

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type costDoc struct {
	Amount decimal.Decimal `bson:"amount"`
}

func TestDecimalCodec_StoresDecimal128(t *testing.T) {
	reg := NewRegistry()

	raw, err := bson.MarshalWithRegistry(reg, costDoc{Amount: decimal.RequireFromString("1234.5678")})
	require.NoError(t, err)

	var generic bson.M
	require.NoError(t, bson.Unmarshal(raw, &generic))
	d128, ok := generic["amount"].(primitive.Decimal128)
	require.True(t, ok, "amount stored as %T", generic["amount"])
	assert.Equal(t, "1234.5678", d128.String())

	var back costDoc
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &back))
	assert.True(t, back.Amount.Equal(decimal.RequireFromString("1234.5678")))
}

func TestDecimalCodec_DecodesLegacyNumbers(t *testing.T) {
	reg := NewRegistry()

	for name, value := range map[string]interface{}{
		"double": 12.5,
		"int32":  int32(12),
		"int64":  int64(12),
		"string": "12.5000",
	} {
		t.Run(name, func(t *testing.T) {
			raw, err := bson.Marshal(bson.M{"amount": value})
			require.NoError(t, err)

			var doc costDoc
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &doc))
			assert.True(t, doc.Amount.GreaterThanOrEqual(decimal.NewFromInt(12)))
		})
	}
}
