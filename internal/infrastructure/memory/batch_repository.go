package memory

import (
	"context"
	"fmt"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/events"
)

// BatchRepository implements domain.BatchRepository on a Store
type BatchRepository struct {
	store *Store
}

// NewBatchRepository creates a batch repository backed by store
func NewBatchRepository(store *Store) *BatchRepository {
	return &BatchRepository{store: store}
}

// Save inserts a batch at version 0 or updates it if the version matches
func (r *BatchRepository) Save(ctx context.Context, batch *domain.Batch) error {
	err := r.store.write(ctx, func(st *state) error {
		if current, ok := st.batches[batch.ID]; ok && current.Version != batch.Version {
			return fmt.Errorf("%w: batch %s is at version %d, update based on %d",
				domain.ErrConcurrentModification, batch.ID, current.Version, batch.Version)
		} else if !ok && batch.Version != 0 {
			return domain.NewNotFoundError("batch", batch.ID)
		}
		rows, err := events.BatchStream.ToOutbox(ctx, r.store.factory, batch.ID, batch.GetDomainEvents())
		if err != nil {
			return err
		}

		stored := copyBatch(batch)
		stored.Version = batch.Version + 1
		st.batches[batch.ID] = stored
		st.appendOutbox(rows)
		return nil
	})
	if err != nil {
		return err
	}

	batch.Version++
	batch.ClearDomainEvents()
	return nil
}

func (r *BatchRepository) FindByID(ctx context.Context, id string) (*domain.Batch, error) {
	var found *domain.Batch
	err := r.store.read(ctx, func(st *state) error {
		b, ok := st.batches[id]
		if !ok {
			return domain.NewNotFoundError("batch", id)
		}
		found = copyBatch(b)
		return nil
	})
	return found, err
}
