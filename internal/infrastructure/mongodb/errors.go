package mongodb

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
)

const writeConflictCode = 112

// storeErr classifies a driver error. Domain errors pass through; duplicate
// keys and write conflicts mean another writer won; anything else is transient.
// The driver error stays wrapped so transaction retry labels remain visible.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrNotFound,
		domain.ErrStateConflict,
		domain.ErrInsufficientStock,
		domain.ErrValidation,
		domain.ErrTransient,
		domain.ErrConcurrentModification,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConcurrentModification, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransient, err)
}

func isWriteConflict(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == writeConflictCode {
		return true
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == writeConflictCode {
				return true
			}
		}
	}
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel("TransientTransactionError")
}
