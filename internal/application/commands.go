package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateRollsCommand registers the rolls of one goods receipt
type CreateRollsCommand struct {
	SupplierID string `json:"supplierId" validate:"required"`
	// BatchID references an existing batch. When empty and BatchCode is set a
	// batch is opened with the rolls.
	BatchID         string           `json:"batchId,omitempty"`
	BatchCode       string           `json:"batchCode,omitempty"`
	ReceivedAt      time.Time        `json:"receivedAt,omitempty"`
	PurchaseOrderID string           `json:"purchaseOrderId,omitempty"`
	GoodsReceiptID  string           `json:"goodsReceiptId,omitempty"`
	InvoiceID       string           `json:"purchaseInvoiceId,omitempty"`
	Items           []CreateRollItem `json:"items" validate:"required,min=1,dive"`
	Actor           string           `json:"-"`
}

// CreateRollItem is one physical roll on the receipt
type CreateRollItem struct {
	SKUID           string          `json:"skuId,omitempty"`
	WidthInches     int             `json:"widthInches" validate:"required"`
	Length          float64         `json:"length" validate:"gt=0"`
	Category        string          `json:"category,omitempty"`
	GSM             string          `json:"gsm,omitempty"`
	Quality         string          `json:"quality,omitempty"`
	BaseCostPerUnit decimal.Decimal `json:"baseCostPerUnit"`
	LineValue       decimal.Decimal `json:"lineValue"`
	GenerateQR      bool            `json:"generateQr,omitempty"`
}

// CreateBatchCommand opens a batch for a supplier delivery
type CreateBatchCommand struct {
	SupplierID string    `json:"supplierId" validate:"required"`
	Code       string    `json:"code" validate:"required"`
	Notes      string    `json:"notes,omitempty"`
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
	Actor      string    `json:"-"`
}

// UpdateBatchNotesCommand replaces a batch's notes
type UpdateBatchNotesCommand struct {
	BatchID string `json:"-" validate:"required"`
	Notes   string `json:"notes"`
	Actor   string `json:"-"`
}

// AllocateCommand reserves whole rolls for an order line
type AllocateCommand struct {
	SKUID         string  `json:"skuId" validate:"required"`
	RequiredCount int     `json:"requiredCount" validate:"gt=0"`
	MinLength     float64 `json:"minLength" validate:"gte=0"`
	OrderLineRef  string  `json:"orderLineRef" validate:"required"`
	Actor         string  `json:"-"`
}

// DeallocateCommand releases every roll reserved for an order line
type DeallocateCommand struct {
	OrderLineRef string `json:"orderLineRef" validate:"required"`
	Actor        string `json:"-"`
}

// DispatchCommand ships a set of Allocated rolls together
type DispatchCommand struct {
	ShipmentRef string   `json:"shipmentRef" validate:"required"`
	RollIDs     []string `json:"rollIds" validate:"required,min=1,dive,required"`
	Actor       string   `json:"-"`
}

// ReturnRollCommand takes back a dispatched roll
type ReturnRollCommand struct {
	RollID          string  `json:"-" validate:"required"`
	RemainingLength float64 `json:"remainingLength" validate:"gte=0"`
	Reason          string  `json:"reason" validate:"required"`
	Actor           string  `json:"-"`
}

// ScrapCommand writes a roll off
type ScrapCommand struct {
	RollID string `json:"-" validate:"required"`
	Reason string `json:"reason" validate:"required"`
	Actor  string `json:"-"`
}

// LandedCostInput is one cost entry submitted for distribution
type LandedCostInput struct {
	ID                string          `json:"id,omitempty"`
	PurchaseInvoiceID string          `json:"purchaseInvoiceId,omitempty"`
	Type              string          `json:"type" validate:"required"`
	Basis             string          `json:"basis" validate:"required"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description,omitempty"`
}

// AllocateLandedCostsCommand distributes cost entries over the rolls of a receipt
type AllocateLandedCostsCommand struct {
	ReceivingEventID string            `json:"receivingEventId" validate:"required"`
	Entries          []LandedCostInput `json:"entries" validate:"required,min=1,dive"`
	Actor            string            `json:"-"`
}

// RollMapping carries the classification hints for one Unmapped roll
type RollMapping struct {
	RollID      string `json:"rollId" validate:"required"`
	Category    string `json:"category" validate:"required"`
	GSMName     string `json:"gsmName" validate:"required"`
	QualityName string `json:"qualityName" validate:"required"`
}

// ResolveUnmappedCommand classifies a list of Unmapped rolls
type ResolveUnmappedCommand struct {
	Mappings []RollMapping `json:"mappings" validate:"required,min=1"`
	Actor    string        `json:"-"`
}

// ListRollsQuery filters roll listings
type ListRollsQuery struct {
	Status         string `form:"status"`
	SKUID          string `form:"skuId"`
	BatchID        string `form:"batchId"`
	SupplierID     string `form:"supplierId"`
	GoodsReceiptID string `form:"goodsReceiptId"`
	ParentRollID   string `form:"parentRollId"`
	Limit          int    `form:"limit" validate:"gte=0,lte=500"`
	Offset         int    `form:"offset" validate:"gte=0"`
}
