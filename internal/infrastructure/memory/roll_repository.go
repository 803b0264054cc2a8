package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/events"
)

// RollRepository implements domain.RollRepository on a Store
type RollRepository struct {
	store *Store
}

// NewRollRepository creates a roll repository backed by store
func NewRollRepository(store *Store) *RollRepository {
	return &RollRepository{store: store}
}

func (r *RollRepository) Insert(ctx context.Context, rolls ...*domain.Roll) error {
	if len(rolls) == 0 {
		return nil
	}
	for _, roll := range rolls {
		if err := roll.Validate(); err != nil {
			return err
		}
	}

	err := r.store.write(ctx, func(st *state) error {
		for _, roll := range rolls {
			if _, exists := st.rolls[roll.ID]; exists {
				return fmt.Errorf("%w: roll %s already exists", domain.ErrConcurrentModification, roll.ID)
			}
			if _, exists := st.rollNumbers[roll.RollNumber]; exists {
				return fmt.Errorf("%w: roll number %s already exists", domain.ErrConcurrentModification, roll.RollNumber)
			}
			rows, err := events.RollStream.ToOutbox(ctx, r.store.factory, roll.ID, roll.GetDomainEvents())
			if err != nil {
				return err
			}

			stored := copyRoll(roll)
			stored.Version = 1
			st.rolls[roll.ID] = stored
			st.rollNumbers[roll.RollNumber] = roll.ID
			st.barcodes[roll.Barcode] = roll.ID
			st.appendOutbox(rows)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, roll := range rolls {
		roll.Version = 1
		roll.ClearDomainEvents()
	}
	return nil
}

func (r *RollRepository) Update(ctx context.Context, roll *domain.Roll) error {
	if err := roll.Validate(); err != nil {
		return err
	}

	err := r.store.write(ctx, func(st *state) error {
		current, ok := st.rolls[roll.ID]
		if !ok {
			return domain.NewNotFoundError("roll", roll.ID)
		}
		if current.Version != roll.Version {
			return fmt.Errorf("%w: roll %s is at version %d, update based on %d",
				domain.ErrConcurrentModification, roll.ID, current.Version, roll.Version)
		}
		rows, err := events.RollStream.ToOutbox(ctx, r.store.factory, roll.ID, roll.GetDomainEvents())
		if err != nil {
			return err
		}

		stored := copyRoll(roll)
		stored.Version = roll.Version + 1
		st.rolls[roll.ID] = stored
		st.appendOutbox(rows)
		return nil
	})
	if err != nil {
		return err
	}

	roll.Version++
	roll.ClearDomainEvents()
	return nil
}

func (r *RollRepository) FindByID(ctx context.Context, id string) (*domain.Roll, error) {
	var found *domain.Roll
	err := r.store.read(ctx, func(st *state) error {
		roll, ok := st.rolls[id]
		if !ok {
			return domain.NewNotFoundError("roll", id)
		}
		found = copyRoll(roll)
		return nil
	})
	return found, err
}

func (r *RollRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Roll, error) {
	var found []*domain.Roll
	err := r.store.read(ctx, func(st *state) error {
		found = make([]*domain.Roll, 0, len(ids))
		for _, id := range ids {
			if roll, ok := st.rolls[id]; ok {
				found = append(found, copyRoll(roll))
			}
		}
		return nil
	})
	return found, err
}

func (r *RollRepository) FindByBarcode(ctx context.Context, barcode string) (*domain.Roll, error) {
	barcode = strings.ToUpper(strings.TrimSpace(barcode))
	var found *domain.Roll
	err := r.store.read(ctx, func(st *state) error {
		id, ok := st.barcodes[barcode]
		if !ok {
			return domain.NewNotFoundError("roll", barcode)
		}
		found = copyRoll(st.rolls[id])
		return nil
	})
	return found, err
}

func (r *RollRepository) FindAvailable(ctx context.Context, skuID string, minLength float64) ([]*domain.Roll, error) {
	rolls, err := r.filter(ctx, func(roll *domain.Roll) bool {
		return roll.IsEligibleFor(skuID, minLength)
	})
	if err != nil {
		return nil, err
	}
	domain.SortFIFO(rolls)
	return rolls, nil
}

func (r *RollRepository) FindAllocatedTo(ctx context.Context, orderLineRef string) ([]*domain.Roll, error) {
	rolls, err := r.filter(ctx, func(roll *domain.Roll) bool {
		return roll.Status == domain.RollStatusAllocated &&
			roll.Allocation != nil &&
			roll.Allocation.OrderLineRef == orderLineRef
	})
	if err != nil {
		return nil, err
	}
	domain.SortFIFO(rolls)
	return rolls, nil
}

func (r *RollRepository) FindByGoodsReceipt(ctx context.Context, goodsReceiptID string) ([]*domain.Roll, error) {
	rolls, err := r.filter(ctx, func(roll *domain.Roll) bool {
		return roll.Source.GoodsReceiptID == goodsReceiptID
	})
	if err != nil {
		return nil, err
	}
	domain.SortFIFO(rolls)
	return rolls, nil
}

func (r *RollRepository) List(ctx context.Context, f domain.RollFilter) ([]*domain.Roll, error) {
	rolls, err := r.filter(ctx, func(roll *domain.Roll) bool {
		return (f.Status == "" || roll.Status == f.Status) &&
			(f.SKUID == "" || roll.SKUID == f.SKUID) &&
			(f.BatchID == "" || roll.BatchID == f.BatchID) &&
			(f.SupplierID == "" || roll.SupplierID == f.SupplierID) &&
			(f.GoodsReceiptID == "" || roll.Source.GoodsReceiptID == f.GoodsReceiptID) &&
			(f.ParentRollID == "" || roll.ParentRollID == f.ParentRollID)
	})
	if err != nil {
		return nil, err
	}
	domain.SortFIFO(rolls)

	if f.Offset > 0 {
		if f.Offset >= len(rolls) {
			return []*domain.Roll{}, nil
		}
		rolls = rolls[f.Offset:]
	}
	if f.Limit > 0 && len(rolls) > f.Limit {
		rolls = rolls[:f.Limit]
	}
	return rolls, nil
}

func (r *RollRepository) MaxSequence(ctx context.Context, sequenceKey string) (int, error) {
	highest := 0
	err := r.store.read(ctx, func(st *state) error {
		for _, roll := range st.rolls {
			if roll.SequenceKey == sequenceKey && roll.Sequence > highest {
				highest = roll.Sequence
			}
		}
		return nil
	})
	return highest, err
}

func (r *RollRepository) filter(ctx context.Context, keep func(*domain.Roll) bool) ([]*domain.Roll, error) {
	var out []*domain.Roll
	err := r.store.read(ctx, func(st *state) error {
		out = make([]*domain.Roll, 0)
		for _, roll := range st.rolls {
			if keep(roll) {
				out = append(out, copyRoll(roll))
			}
		}
		return nil
	})
	return out, err
}
