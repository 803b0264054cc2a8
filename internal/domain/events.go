package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// RollReceivedEvent is published when goods receipt creates a roll
type RollReceivedEvent struct {
	RollID         string     `json:"rollId"`
	RollNumber     string     `json:"rollNumber"`
	Barcode        string     `json:"barcode"`
	Status         RollStatus `json:"status"`
	SKUID          string     `json:"skuId,omitempty"`
	BatchID        string     `json:"batchId,omitempty"`
	SupplierID     string     `json:"supplierId"`
	GoodsReceiptID string     `json:"goodsReceiptId,omitempty"`
	WidthInches    Width      `json:"widthInches"`
	Length         float64    `json:"length"`
	ReceivedAt     time.Time  `json:"receivedAt"`
}

func (e *RollReceivedEvent) EventType() string     { return "textile.roll.received" }
func (e *RollReceivedEvent) OccurredAt() time.Time { return e.ReceivedAt }

// RollClassifiedEvent is published when an unmapped roll is linked to a SKU
type RollClassifiedEvent struct {
	RollID       string    `json:"rollId"`
	SKUID        string    `json:"skuId"`
	ClassifiedBy string    `json:"classifiedBy"`
	ClassifiedAt time.Time `json:"classifiedAt"`
}

func (e *RollClassifiedEvent) EventType() string     { return "textile.roll.classified" }
func (e *RollClassifiedEvent) OccurredAt() time.Time { return e.ClassifiedAt }

// RollAllocatedEvent is published when a roll is reserved against an order line
type RollAllocatedEvent struct {
	RollID       string    `json:"rollId"`
	SKUID        string    `json:"skuId"`
	OrderLineRef string    `json:"orderLineRef"`
	Length       float64   `json:"length"`
	AllocatedBy  string    `json:"allocatedBy"`
	AllocatedAt  time.Time `json:"allocatedAt"`
}

func (e *RollAllocatedEvent) EventType() string     { return "textile.roll.allocated" }
func (e *RollAllocatedEvent) OccurredAt() time.Time { return e.AllocatedAt }

// RollDeallocatedEvent is published when a reservation is released
type RollDeallocatedEvent struct {
	RollID        string    `json:"rollId"`
	OrderLineRef  string    `json:"orderLineRef"`
	DeallocatedBy string    `json:"deallocatedBy"`
	DeallocatedAt time.Time `json:"deallocatedAt"`
}

func (e *RollDeallocatedEvent) EventType() string     { return "textile.roll.deallocated" }
func (e *RollDeallocatedEvent) OccurredAt() time.Time { return e.DeallocatedAt }

// RollDispatchedEvent is published when a roll ships
type RollDispatchedEvent struct {
	RollID       string    `json:"rollId"`
	ShipmentRef  string    `json:"shipmentRef"`
	OrderLineRef string    `json:"orderLineRef"`
	Length       float64   `json:"length"`
	DispatchedBy string    `json:"dispatchedBy"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}

func (e *RollDispatchedEvent) EventType() string     { return "textile.roll.dispatched" }
func (e *RollDispatchedEvent) OccurredAt() time.Time { return e.DispatchedAt }

// RollReturnedEvent is published when a dispatched roll is retired by a return
type RollReturnedEvent struct {
	RollID          string    `json:"rollId"`
	Reason          string    `json:"reason"`
	RemainingLength float64   `json:"remainingLength"`
	ReturnedBy      string    `json:"returnedBy"`
	ReturnedAt      time.Time `json:"returnedAt"`
}

func (e *RollReturnedEvent) EventType() string     { return "textile.roll.returned" }
func (e *RollReturnedEvent) OccurredAt() time.Time { return e.ReturnedAt }

// RollSpawnedEvent is published when a return creates a remainder roll
type RollSpawnedEvent struct {
	RollID       string    `json:"rollId"`
	ParentRollID string    `json:"parentRollId"`
	RollNumber   string    `json:"rollNumber"`
	SKUID        string    `json:"skuId"`
	Length       float64   `json:"length"`
	SpawnedAt    time.Time `json:"spawnedAt"`
}

func (e *RollSpawnedEvent) EventType() string     { return "textile.roll.spawned" }
func (e *RollSpawnedEvent) OccurredAt() time.Time { return e.SpawnedAt }

// RollScrappedEvent is published when a roll is written off
type RollScrappedEvent struct {
	RollID     string     `json:"rollId"`
	FromStatus RollStatus `json:"fromStatus"`
	Reason     string     `json:"reason"`
	ScrappedBy string     `json:"scrappedBy"`
	ScrappedAt time.Time  `json:"scrappedAt"`
}

func (e *RollScrappedEvent) EventType() string     { return "textile.roll.scrapped" }
func (e *RollScrappedEvent) OccurredAt() time.Time { return e.ScrappedAt }

// LandedCostAppliedEvent is published when an allocator share changes a roll's cost basis
type LandedCostAppliedEvent struct {
	RollID            string          `json:"rollId"`
	CostEntryID       string          `json:"costEntryId"`
	Amount            decimal.Decimal `json:"amount"`
	LandedCostPerUnit decimal.Decimal `json:"landedCostPerUnit"`
	AppliedAt         time.Time       `json:"appliedAt"`
}

func (e *LandedCostAppliedEvent) EventType() string     { return "textile.roll.landed-cost-applied" }
func (e *LandedCostAppliedEvent) OccurredAt() time.Time { return e.AppliedAt }

// BatchCreatedEvent is published when a supplier delivery batch is opened
type BatchCreatedEvent struct {
	BatchID    string    `json:"batchId"`
	SupplierID string    `json:"supplierId"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (e *BatchCreatedEvent) EventType() string     { return "textile.batch.created" }
func (e *BatchCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// BatchNotesUpdatedEvent is published when batch notes change
type BatchNotesUpdatedEvent struct {
	BatchID   string    `json:"batchId"`
	Notes     string    `json:"notes"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *BatchNotesUpdatedEvent) EventType() string     { return "textile.batch.notes-updated" }
func (e *BatchNotesUpdatedEvent) OccurredAt() time.Time { return e.UpdatedAt }

// SKUCreatedEvent is published when the resolver adds a SKU for a new width
type SKUCreatedEvent struct {
	SKUID       string    `json:"skuId"`
	ProductID   string    `json:"productId"`
	Code        string    `json:"code"`
	WidthInches Width     `json:"widthInches"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e *SKUCreatedEvent) EventType() string     { return "textile.catalog.sku-created" }
func (e *SKUCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }
