package memory

import (
	"time"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
)

// Stored values are never mutated in place. Everything crossing the store
// boundary is copied so callers cannot reach committed state.

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyRoll(r *domain.Roll) *domain.Roll {
	c := *r
	c.MappedAt = copyTime(r.MappedAt)
	if r.Allocation != nil {
		a := *r.Allocation
		c.Allocation = &a
	}
	if r.Shipment != nil {
		s := *r.Shipment
		c.Shipment = &s
	}
	if r.ReturnInfo != nil {
		ri := *r.ReturnInfo
		c.ReturnInfo = &ri
	}
	if r.ScrapInfo != nil {
		si := *r.ScrapInfo
		c.ScrapInfo = &si
	}
	c.DomainEvents = nil
	return &c
}

func copyBatch(b *domain.Batch) *domain.Batch {
	c := *b
	c.DomainEvents = nil
	return &c
}

func copyCost(e *domain.LandedCostEntry) *domain.LandedCostEntry {
	c := *e
	c.AllocatedAt = copyTime(e.AllocatedAt)
	return &c
}

func copySKU(s *domain.SKU) *domain.SKU {
	c := *s
	c.DomainEvents = nil
	return &c
}

func copyOutbox(e *outbox.OutboxEvent) *outbox.OutboxEvent {
	c := *e
	c.PublishedAt = copyTime(e.PublishedAt)
	c.Payload = append([]byte(nil), e.Payload...)
	return &c
}
