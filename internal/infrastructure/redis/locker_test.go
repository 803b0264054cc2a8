package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestSequenceLocker_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := DefaultConfig()
	cfg.Addr = startRedis(t)
	cfg.LockWait = 200 * time.Millisecond

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	locker := NewSequenceLocker(client, cfg, logging.NewNop())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "2505-AHM-L1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "2505-AHM-L1")
	assert.ErrorIs(t, err, domain.ErrTransient)

	other, err := locker.Lock(ctx, "2505-BEL-L1")
	require.NoError(t, err)
	other()

	unlock()
	again, err := locker.Lock(ctx, "2505-AHM-L1")
	require.NoError(t, err)
	again()
}
