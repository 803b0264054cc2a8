package kafka

import (
	"time"
)

// Config holds Kafka producer configuration
type Config struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientId"`

	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"` // 0: none, 1: leader, -1: all replicas
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "roll-inventory",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
		WriteTimeout: 10 * time.Second,
	}
}

// Topics contains the topic names the roll inventory engine publishes to
var Topics = struct {
	RollEvents    string
	BatchEvents   string
	CatalogEvents string
}{
	RollEvents:    "textile.rolls.events",
	BatchEvents:   "textile.batches.events",
	CatalogEvents: "textile.catalog.events",
}
