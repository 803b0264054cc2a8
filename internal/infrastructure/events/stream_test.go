package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
)

func TestStream_ToOutbox(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	pending := []domain.DomainEvent{
		&domain.RollAllocatedEvent{RollID: "roll-1", SKUID: "sku-x", OrderLineRef: "SO-1/1", AllocatedAt: at},
	}
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	ctx = logging.ContextWithActor(ctx, "alice")

	rows, err := RollStream.ToOutbox(ctx, nil, "roll-1", pending)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "roll-1", row.AggregateID)
	assert.Equal(t, "Roll", row.AggregateType)
	assert.Equal(t, "textile.rolls.events", row.Topic)
	assert.Equal(t, "textile.roll.allocated", row.EventType)

	ce, err := row.ToCloudEvent()
	require.NoError(t, err)
	assert.Equal(t, "rolls/roll-1", ce.Subject)
	assert.Equal(t, "corr-1", ce.CorrelationID)
	assert.Equal(t, "alice", ce.Actor)
	assert.True(t, ce.Time.Equal(at))
}

func TestStream_ToOutboxEmpty(t *testing.T) {
	rows, err := BatchStream.ToOutbox(context.Background(), nil, "b-1", nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
}
