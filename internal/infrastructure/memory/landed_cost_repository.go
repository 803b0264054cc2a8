package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
)

// LandedCostRepository implements domain.LandedCostRepository on a Store
type LandedCostRepository struct {
	store *Store
}

// NewLandedCostRepository creates a landed cost repository backed by store
func NewLandedCostRepository(store *Store) *LandedCostRepository {
	return &LandedCostRepository{store: store}
}

// Save inserts an entry at version 0 or updates it if the version matches
func (r *LandedCostRepository) Save(ctx context.Context, entry *domain.LandedCostEntry) error {
	err := r.store.write(ctx, func(st *state) error {
		if current, ok := st.costs[entry.ID]; ok && current.Version != entry.Version {
			return fmt.Errorf("%w: cost entry %s is at version %d, update based on %d",
				domain.ErrConcurrentModification, entry.ID, current.Version, entry.Version)
		} else if !ok && entry.Version != 0 {
			return domain.NewNotFoundError("landed cost entry", entry.ID)
		}
		stored := copyCost(entry)
		stored.Version = entry.Version + 1
		st.costs[entry.ID] = stored
		return nil
	})
	if err != nil {
		return err
	}
	entry.Version++
	return nil
}

func (r *LandedCostRepository) FindByID(ctx context.Context, id string) (*domain.LandedCostEntry, error) {
	var found *domain.LandedCostEntry
	err := r.store.read(ctx, func(st *state) error {
		e, ok := st.costs[id]
		if !ok {
			return domain.NewNotFoundError("landed cost entry", id)
		}
		found = copyCost(e)
		return nil
	})
	return found, err
}

func (r *LandedCostRepository) FindByReceivingEvent(ctx context.Context, receivingEventID string) ([]*domain.LandedCostEntry, error) {
	var found []*domain.LandedCostEntry
	err := r.store.read(ctx, func(st *state) error {
		found = make([]*domain.LandedCostEntry, 0)
		for _, e := range st.costs {
			if e.ReceivingEventID == receivingEventID {
				found = append(found, copyCost(e))
			}
		}
		return nil
	})
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	return found, err
}
