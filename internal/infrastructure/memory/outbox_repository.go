package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
)

// OutboxRepository implements outbox.Repository on a Store. Repositories of the
// same store append to it inside their writes.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates an outbox repository backed by store
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.store.write(ctx, func(st *state) error {
		st.appendOutbox(events)
		return nil
	})
}

func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	var found []*outbox.OutboxEvent
	err := r.store.read(ctx, func(st *state) error {
		found = make([]*outbox.OutboxEvent, 0)
		for _, id := range st.outboxOrder {
			e := st.outbox[id]
			if !e.ShouldRetry() {
				continue
			}
			found = append(found, copyOutbox(e))
			if limit > 0 && len(found) == limit {
				break
			}
		}
		return nil
	})
	return found, err
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return r.update(ctx, eventID, func(e *outbox.OutboxEvent) {
		now := time.Now().UTC()
		e.PublishedAt = &now
	})
}

func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	return r.update(ctx, eventID, func(e *outbox.OutboxEvent) {
		e.RetryCount++
		e.LastError = errorMsg
	})
}

func (r *OutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	var found []*outbox.OutboxEvent
	err := r.store.read(ctx, func(st *state) error {
		found = make([]*outbox.OutboxEvent, 0)
		for _, id := range st.outboxOrder {
			if e := st.outbox[id]; e.AggregateID == aggregateID {
				found = append(found, copyOutbox(e))
			}
		}
		return nil
	})
	return found, err
}

func (r *OutboxRepository) update(ctx context.Context, eventID string, mutate func(*outbox.OutboxEvent)) error {
	return r.store.write(ctx, func(st *state) error {
		e, ok := st.outbox[eventID]
		if !ok {
			return fmt.Errorf("outbox event %s not found", eventID)
		}
		c := copyOutbox(e)
		mutate(c)
		st.outbox[eventID] = c
		return nil
	})
}
