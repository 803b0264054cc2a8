// Package testing holds container helpers for integration tests
package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
)

// MongoDBContainer wraps a single-node replica set; transactions need one
type MongoDBContainer struct {
	Container *mongodb.MongoDBContainer
	URI       string
}

// NewMongoDBContainer starts mongo:6 as replica set "rs"
func NewMongoDBContainer(ctx context.Context) (*MongoDBContainer, error) {
	container, err := mongodb.Run(ctx, "mongo:6", mongodb.WithReplicaSet("rs"))
	if err != nil {
		return nil, fmt.Errorf("failed to start mongodb container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &MongoDBContainer{Container: container, URI: uri}, nil
}

// Config returns a client config for database on this container
func (m *MongoDBContainer) Config(database string) *pkgmongo.Config {
	cfg := pkgmongo.DefaultConfig()
	cfg.URI = m.URI
	cfg.Database = database
	cfg.Direct = true
	cfg.MinPoolSize = 0
	cfg.ConnectTimeout = 30 * time.Second
	return cfg
}

// Close terminates the MongoDB container
func (m *MongoDBContainer) Close(ctx context.Context) error {
	if m.Container != nil {
		return m.Container.Terminate(ctx)
	}
	return nil
}
