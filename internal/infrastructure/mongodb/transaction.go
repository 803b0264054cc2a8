package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	pkgmongo "github.com/textile-backoffice/roll-inventory/pkg/mongodb"
)

// TransactionManager implements domain.TransactionManager with multi-document
// MongoDB transactions. The ctx handed to fn carries the session, so
// repositories called with it take part in the transaction.
type TransactionManager struct {
	client *pkgmongo.InstrumentedClient
}

// NewTransactionManager creates a TransactionManager on client
func NewTransactionManager(client *pkgmongo.InstrumentedClient) *TransactionManager {
	return &TransactionManager{client: client}
}

func (m *TransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		return fn(sessCtx)
	})
	return storeErr("transaction", err)
}
