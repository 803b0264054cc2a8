package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// RollDTO represents a roll in responses
type RollDTO struct {
	ID                string          `json:"id"`
	RollNumber        string          `json:"rollNumber"`
	Barcode           string          `json:"barcode"`
	QRPayload         string          `json:"qrPayload,omitempty"`
	Status            string          `json:"status"`
	SKUID             string          `json:"skuId,omitempty"`
	BatchID           string          `json:"batchId,omitempty"`
	SupplierID        string          `json:"supplierId"`
	WidthInches       int             `json:"widthInches"`
	OriginalLength    float64         `json:"originalLength"`
	CurrentLength     float64         `json:"currentLength"`
	Category          string          `json:"category,omitempty"`
	GSM               string          `json:"gsm,omitempty"`
	Quality           string          `json:"quality,omitempty"`
	BaseCostPerUnit   decimal.Decimal `json:"baseCostPerUnit"`
	LineValue         decimal.Decimal `json:"lineValue"`
	LandedCostPerUnit decimal.Decimal `json:"landedCostPerUnit"`
	TotalLandedCost   decimal.Decimal `json:"totalLandedCost"`
	AllocatedCost     decimal.Decimal `json:"allocatedCost"`
	PurchaseOrderID   string          `json:"purchaseOrderId,omitempty"`
	GoodsReceiptID    string          `json:"goodsReceiptId,omitempty"`
	PurchaseInvoiceID string          `json:"purchaseInvoiceId,omitempty"`
	OrderLineRef      string          `json:"orderLineRef,omitempty"`
	ShipmentRef       string          `json:"shipmentRef,omitempty"`
	ParentRollID      string          `json:"parentRollId,omitempty"`
	SpawnedRollID     string          `json:"spawnedRollId,omitempty"`
	ReceivedAt        time.Time       `json:"receivedAt"`
	MappedAt          *time.Time      `json:"mappedAt,omitempty"`
	AllocatedAt       *time.Time      `json:"allocatedAt,omitempty"`
	DispatchedAt      *time.Time      `json:"dispatchedAt,omitempty"`
	ReturnedAt        *time.Time      `json:"returnedAt,omitempty"`
	ReturnReason      string          `json:"returnReason,omitempty"`
	ScrappedAt        *time.Time      `json:"scrappedAt,omitempty"`
	ScrapReason       string          `json:"scrapReason,omitempty"`
	Version           int64           `json:"version"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// BatchDTO represents a batch in responses
type BatchDTO struct {
	ID         string    `json:"id"`
	SupplierID string    `json:"supplierId"`
	Code       string    `json:"code"`
	Notes      string    `json:"notes,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CreateRollsResultDTO is the outcome of a goods receipt. Batch is set only
// when the receipt opened a new batch from a BatchCode; rolls received into
// an existing BatchID carry that ID on each roll instead.
type CreateRollsResultDTO struct {
	Batch *BatchDTO  `json:"batch,omitempty"`
	Rolls []*RollDTO `json:"rolls"`
}

// AllocationResultDTO lists the rolls reserved for an order line
type AllocationResultDTO struct {
	OrderLineRef string     `json:"orderLineRef"`
	Rolls        []*RollDTO `json:"rolls"`
}

// DeallocationResultDTO reports how many rolls went back to stock
type DeallocationResultDTO struct {
	OrderLineRef string `json:"orderLineRef"`
	Released     int    `json:"released"`
}

// DispatchResultDTO lists the rolls shipped together
type DispatchResultDTO struct {
	ShipmentRef string     `json:"shipmentRef"`
	Rolls       []*RollDTO `json:"rolls"`
}

// ReturnResultDTO holds the retired roll and, when enough material came back, its remainder
type ReturnResultDTO struct {
	RetiredRoll *RollDTO `json:"retiredRoll"`
	SpawnedRoll *RollDTO `json:"spawnedRoll,omitempty"`
}

// RollCostDeltaDTO is the landed cost a call added to one roll
type RollCostDeltaDTO struct {
	RollID            string          `json:"rollId"`
	RollNumber        string          `json:"rollNumber"`
	Delta             decimal.Decimal `json:"delta"`
	LandedCostPerUnit decimal.Decimal `json:"landedCostPerUnit"`
	Informational     bool            `json:"informational"`
}

// CostEntryStatusDTO reports what happened to one submitted cost entry
type CostEntryStatusDTO struct {
	EntryID     string          `json:"entryId"`
	Amount      decimal.Decimal `json:"amount"`
	Basis       string          `json:"basis"`
	Status      string          `json:"status"`
	Distributed decimal.Decimal `json:"distributed"`
}

// Cost entry outcomes
const (
	CostEntryAllocated        = "allocated"
	CostEntryAlreadyAllocated = "already_allocated"
	CostEntryNoBasis          = "no_basis"
)

// LandedCostResultDTO aggregates per-roll deltas across every processed entry
type LandedCostResultDTO struct {
	ReceivingEventID string                `json:"receivingEventId"`
	Rolls            []*RollCostDeltaDTO   `json:"rolls"`
	Entries          []*CostEntryStatusDTO `json:"entries"`
}

// ResolveItemResultDTO is the outcome for one mapping
type ResolveItemResultDTO struct {
	RollID     string `json:"rollId"`
	Success    bool   `json:"success"`
	SKUID      string `json:"skuId,omitempty"`
	SKUCreated bool   `json:"skuCreated,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

// ResolveResultDTO lists every mapping's outcome in request order
type ResolveResultDTO struct {
	Resolved int                     `json:"resolved"`
	Failed   int                     `json:"failed"`
	Items    []*ResolveItemResultDTO `json:"items"`
}

// LineageDTO is a roll with its ancestors (oldest first) and descendants
type LineageDTO struct {
	Roll        *RollDTO   `json:"roll"`
	Ancestors   []*RollDTO `json:"ancestors"`
	Descendants []*RollDTO `json:"descendants"`
}
