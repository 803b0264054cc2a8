package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/memory"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
)

func TestReadinessCheck_StoreOnly(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	assert.NoError(t, readinessCheck(context.Background(), healthy, nil)())

	down := func(context.Context) error { return errors.New("no primary") }
	assert.EqualError(t, readinessCheck(context.Background(), down, nil)(), "no primary")
}

func TestReadinessCheck_TracksOutboxPublisher(t *testing.T) {
	repo := memory.NewOutboxRepository(memory.NewStore(nil))
	relay := outbox.NewPublisher(repo, nil, logging.NewNop(), nil, &outbox.PublisherConfig{
		PollInterval: time.Hour,
		BatchSize:    10,
	})
	check := readinessCheck(context.Background(), func(context.Context) error { return nil }, relay)

	assert.Error(t, check(), "a publisher that never started is not ready")

	require.NoError(t, relay.Start(context.Background()))
	assert.NoError(t, check())

	require.NoError(t, relay.Stop())
	assert.EqualError(t, check(), "outbox publisher is not running")
}
