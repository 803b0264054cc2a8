package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Batch groups the rolls of one supplier delivery. Only the notes change after creation.
type Batch struct {
	ID           string        `bson:"_id" json:"id"`
	SupplierID   string        `bson:"supplierId" json:"supplierId"`
	Code         string        `bson:"code" json:"code"`
	Notes        string        `bson:"notes,omitempty" json:"notes,omitempty"`
	ReceivedAt   time.Time     `bson:"receivedAt" json:"receivedAt"`
	Version      int64         `bson:"version" json:"version"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewBatch opens a batch for a supplier delivery
func NewBatch(supplierID, code, notes string, receivedAt time.Time) (*Batch, error) {
	if strings.TrimSpace(supplierID) == "" {
		return nil, NewValidationError("supplierId", "is required")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, NewValidationError("code", "must contain letters or digits")
	}
	now := time.Now().UTC()
	if receivedAt.IsZero() {
		receivedAt = now
	}

	b := &Batch{
		ID:           uuid.NewString(),
		SupplierID:   supplierID,
		Code:         normalized,
		Notes:        notes,
		ReceivedAt:   receivedAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
		DomainEvents: make([]DomainEvent, 0),
	}
	b.addEvent(&BatchCreatedEvent{
		BatchID:    b.ID,
		SupplierID: supplierID,
		Code:       normalized,
		CreatedAt:  now,
	})
	return b, nil
}

// UpdateNotes replaces the free-text notes
func (b *Batch) UpdateNotes(notes, actor string, at time.Time) {
	b.Notes = notes
	b.UpdatedAt = at.UTC()
	b.addEvent(&BatchNotesUpdatedEvent{
		BatchID:   b.ID,
		Notes:     notes,
		UpdatedBy: actor,
		UpdatedAt: b.UpdatedAt,
	})
}

func (b *Batch) addEvent(event DomainEvent) {
	b.DomainEvents = append(b.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (b *Batch) GetDomainEvents() []DomainEvent {
	return b.DomainEvents
}

// ClearDomainEvents clears all domain events
func (b *Batch) ClearDomainEvents() {
	b.DomainEvents = make([]DomainEvent, 0)
}
