package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Inventory.Storage)
	assert.Equal(t, 1.0, cfg.Inventory.MinUsableLength)
	assert.False(t, cfg.Outbox.Enabled)
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.False(t, cfg.Idempotency.RequireKey)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.Retention)
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, "roll-inventory.yaml", `
server:
  addr: ":9000"
inventory:
  storage: mongodb
  minUsableLength: 2.5
  catalogSeedFile: /etc/roll-inventory/catalog.yaml
redis:
  addr: redis:6379
  lockTTL: 8s
outbox:
  enabled: true
  pollInterval: 250ms
`)
	t.Setenv("MONGODB_DATABASE", "mill_inventory")
	t.Setenv("MIN_USABLE_LENGTH", "0.75")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, StorageMongoDB, cfg.Inventory.Storage)
	assert.Equal(t, 0.75, cfg.Inventory.MinUsableLength, "environment wins over the file")
	assert.Equal(t, "/etc/roll-inventory/catalog.yaml", cfg.Inventory.CatalogSeedFile)
	assert.Equal(t, "mill_inventory", cfg.MongoDB.Database)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI, "defaults survive a partial file")
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 8*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 3*time.Second, cfg.Redis.LockWait)
	assert.True(t, cfg.Outbox.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadFile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown storage", map[string]string{"INVENTORY_STORAGE": "postgres"}, "storage"},
		{"negative min usable length", map[string]string{"MIN_USABLE_LENGTH": "-1"}, "minUsableLength"},
		{"unparsable number", map[string]string{"MIN_USABLE_LENGTH": "one"}, "MIN_USABLE_LENGTH"},
		{"unparsable duration", map[string]string{"SEQUENCE_LOCK_TTL": "soon"}, "SEQUENCE_LOCK_TTL"},
		{"sample rate above one", map[string]string{"TRACING_SAMPLE_RATE": "1.5"}, "sampleRate"},
		{"zero idempotency retention", map[string]string{"IDEMPOTENCY_RETENTION": "0s"}, "retention"},
		{"relay without brokers", map[string]string{"OUTBOX_ENABLED": "true", "KAFKA_BROKERS": " , "}, "kafka broker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_DotEnvDoesNotOverride(t *testing.T) {
	envFile := writeFile(t, ".env", "SERVER_ADDR=:7000\nMONGODB_DATABASE=from_dotenv\n")
	t.Setenv("ROLL_ENV_FILE", envFile)
	t.Setenv("ROLL_CONFIG_FILE", "")
	t.Setenv("MONGODB_DATABASE", "from_process")
	// registers a restore, then clears it so the .env value can fill it
	t.Setenv("SERVER_ADDR", "")
	require.NoError(t, os.Unsetenv("SERVER_ADDR"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "from_process", cfg.MongoDB.Database)
}
