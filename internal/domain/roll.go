package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision money fields are rounded to
const MoneyPlaces = 4

// Descriptors are catalog names copied onto the roll at creation. They are not
// re-read when the catalog changes.
type Descriptors struct {
	Category string `bson:"category,omitempty" json:"category,omitempty"`
	GSM      string `bson:"gsm,omitempty" json:"gsm,omitempty"`
	Quality  string `bson:"quality,omitempty" json:"quality,omitempty"`
}

// SourceRefs link a roll to the purchasing documents that brought it in
type SourceRefs struct {
	PurchaseOrderID   string `bson:"purchaseOrderId,omitempty" json:"purchaseOrderId,omitempty"`
	GoodsReceiptID    string `bson:"goodsReceiptId,omitempty" json:"goodsReceiptId,omitempty"`
	PurchaseInvoiceID string `bson:"purchaseInvoiceId,omitempty" json:"purchaseInvoiceId,omitempty"`
}

// AllocationDetails records the reservation of a roll against a sales-order line
type AllocationDetails struct {
	OrderLineRef string    `bson:"orderLineRef" json:"orderLineRef"`
	AllocatedAt  time.Time `bson:"allocatedAt" json:"allocatedAt"`
	AllocatedBy  string    `bson:"allocatedBy" json:"allocatedBy"`
}

// ShipmentDetails records the dispatch of a roll
type ShipmentDetails struct {
	ShipmentRef  string    `bson:"shipmentRef" json:"shipmentRef"`
	DispatchedAt time.Time `bson:"dispatchedAt" json:"dispatchedAt"`
	DispatchedBy string    `bson:"dispatchedBy" json:"dispatchedBy"`
}

// ReturnDetails records the retirement of a dispatched roll
type ReturnDetails struct {
	Reason          string    `bson:"reason" json:"reason"`
	RemainingLength float64   `bson:"remainingLength" json:"remainingLength"`
	ReturnedAt      time.Time `bson:"returnedAt" json:"returnedAt"`
	ReturnedBy      string    `bson:"returnedBy" json:"returnedBy"`
	SpawnedRollID   string    `bson:"spawnedRollId,omitempty" json:"spawnedRollId,omitempty"`
}

// ScrapDetails records a write-off
type ScrapDetails struct {
	Reason     string     `bson:"reason" json:"reason"`
	FromStatus RollStatus `bson:"fromStatus" json:"fromStatus"`
	ScrappedAt time.Time  `bson:"scrappedAt" json:"scrappedAt"`
	ScrappedBy string     `bson:"scrappedBy" json:"scrappedBy"`
}

// Roll is the aggregate root for a single physical roll of material
type Roll struct {
	ID         string `bson:"_id" json:"id"`
	RollNumber string `bson:"rollNumber" json:"rollNumber"`
	Barcode    string `bson:"barcode" json:"barcode"`
	QRPayload  string `bson:"qrPayload,omitempty" json:"qrPayload,omitempty"`

	// Identity inputs, kept so the barcode checksum can be recomputed
	SupplierCode string    `bson:"supplierCode" json:"supplierCode"`
	BatchCode    string    `bson:"batchCode" json:"batchCode"`
	SequenceKey  string    `bson:"sequenceKey" json:"sequenceKey"`
	Sequence     int       `bson:"sequence" json:"sequence"`
	ReceivedAt   time.Time `bson:"receivedAt" json:"receivedAt"`

	WidthInches    Width       `bson:"widthInches" json:"widthInches"`
	OriginalLength float64     `bson:"originalLength" json:"originalLength"`
	CurrentLength  float64     `bson:"currentLength" json:"currentLength"`
	Descriptors    Descriptors `bson:"descriptors" json:"descriptors"`

	BaseCostPerUnit   decimal.Decimal `bson:"baseCostPerUnit" json:"baseCostPerUnit"`
	LineValue         decimal.Decimal `bson:"lineValue" json:"lineValue"`
	LandedCostPerUnit decimal.Decimal `bson:"landedCostPerUnit" json:"landedCostPerUnit"`
	TotalLandedCost   decimal.Decimal `bson:"totalLandedCost" json:"totalLandedCost"`
	AllocatedCost     decimal.Decimal `bson:"allocatedCost" json:"allocatedCost"`

	SKUID      string     `bson:"skuId,omitempty" json:"skuId,omitempty"`
	BatchID    string     `bson:"batchId,omitempty" json:"batchId,omitempty"`
	SupplierID string     `bson:"supplierId" json:"supplierId"`
	Source     SourceRefs `bson:"source" json:"source"`

	Status       RollStatus         `bson:"status" json:"status"`
	MappedAt     *time.Time         `bson:"mappedAt,omitempty" json:"mappedAt,omitempty"`
	Allocation   *AllocationDetails `bson:"allocation,omitempty" json:"allocation,omitempty"`
	Shipment     *ShipmentDetails   `bson:"shipment,omitempty" json:"shipment,omitempty"`
	ReturnInfo   *ReturnDetails     `bson:"returnInfo,omitempty" json:"returnInfo,omitempty"`
	ScrapInfo    *ScrapDetails      `bson:"scrapInfo,omitempty" json:"scrapInfo,omitempty"`
	ParentRollID string             `bson:"parentRollId,omitempty" json:"parentRollId,omitempty"`

	Version      int64         `bson:"version" json:"version"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewRollParams carries the receipt data for one roll
type NewRollParams struct {
	ID              string
	SupplierID      string
	SupplierCode    string
	BatchID         string
	BatchCode       string
	SKUID           string
	Sequence        int
	ReceivedAt      time.Time
	WidthInches     int
	Length          float64
	Descriptors     Descriptors
	BaseCostPerUnit decimal.Decimal
	LineValue       decimal.Decimal
	Source          SourceRefs
	GenerateQR      bool
}

// NewRoll creates a roll from goods receipt. A roll with a SKU starts Mapped,
// otherwise Unmapped.
func NewRoll(p NewRollParams) (*Roll, error) {
	if strings.TrimSpace(p.SupplierID) == "" {
		return nil, NewValidationError("supplierId", "is required")
	}
	width, err := ParseWidth(p.WidthInches)
	if err != nil {
		return nil, err
	}
	if p.Length <= 0 {
		return nil, NewValidationError("length", "must be positive")
	}
	if p.Sequence <= 0 {
		return nil, NewValidationError("sequence", "must be positive")
	}
	if p.BaseCostPerUnit.IsNegative() {
		return nil, NewValidationError("baseCostPerUnit", "must not be negative")
	}
	if p.LineValue.IsNegative() {
		return nil, NewValidationError("lineValue", "must not be negative")
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	receivedAt := p.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	receivedAt = receivedAt.UTC()

	length := decimal.NewFromFloat(p.Length)
	lineValue := p.LineValue
	if lineValue.IsZero() {
		lineValue = p.BaseCostPerUnit.Mul(length).Round(MoneyPlaces)
	}

	ident := Identity{
		ReceivedAt:   receivedAt,
		SupplierCode: p.SupplierCode,
		BatchCode:    p.BatchCode,
		Sequence:     p.Sequence,
	}

	r := &Roll{
		ID:                id,
		RollNumber:        ident.RollNumber(),
		Barcode:           ident.Barcode(id),
		SupplierCode:      NormalizeCode(p.SupplierCode),
		BatchCode:         NormalizeCode(p.BatchCode),
		SequenceKey:       ident.SequenceKey(),
		Sequence:          p.Sequence,
		ReceivedAt:        receivedAt,
		WidthInches:       width,
		OriginalLength:    p.Length,
		CurrentLength:     p.Length,
		Descriptors:       p.Descriptors,
		BaseCostPerUnit:   p.BaseCostPerUnit,
		LineValue:         lineValue,
		LandedCostPerUnit: p.BaseCostPerUnit,
		TotalLandedCost:   p.BaseCostPerUnit.Mul(length).Round(MoneyPlaces),
		AllocatedCost:     decimal.Zero,
		SKUID:             p.SKUID,
		BatchID:           p.BatchID,
		SupplierID:        p.SupplierID,
		Source:            p.Source,
		Status:            RollStatusUnmapped,
		CreatedAt:         receivedAt,
		UpdatedAt:         receivedAt,
		DomainEvents:      make([]DomainEvent, 0),
	}
	if p.SKUID != "" {
		r.Status = RollStatusMapped
		mappedAt := receivedAt
		r.MappedAt = &mappedAt
	}
	if p.GenerateQR {
		r.RefreshQR()
	}

	r.addEvent(&RollReceivedEvent{
		RollID:         r.ID,
		RollNumber:     r.RollNumber,
		Barcode:        r.Barcode,
		Status:         r.Status,
		SKUID:          r.SKUID,
		BatchID:        r.BatchID,
		SupplierID:     r.SupplierID,
		GoodsReceiptID: r.Source.GoodsReceiptID,
		WidthInches:    r.WidthInches,
		Length:         r.OriginalLength,
		ReceivedAt:     receivedAt,
	})

	return r, nil
}

// NewSpawnedRoll creates the Mapped remainder of a returned roll. The child keeps
// the parent's catalog, batch, supplier, width, receipt time and per-unit costs,
// and takes the next sequence under the parent's sequence key.
func NewSpawnedRoll(parent *Roll, sequence int, length float64, at time.Time) (*Roll, error) {
	if parent.Status != RollStatusReturned || parent.ReturnInfo == nil {
		return nil, &StateConflictError{
			RollID:    parent.ID,
			Operation: OpReturn,
			Actual:    parent.Status,
			Expected:  []RollStatus{RollStatusReturned},
		}
	}
	if parent.SKUID == "" {
		return nil, NewValidationError("skuId", "parent roll has no SKU")
	}
	if length <= 0 {
		return nil, NewValidationError("remainingLength", "must be positive")
	}
	if length > parent.ReturnInfo.RemainingLength {
		return nil, NewValidationError("remainingLength",
			fmt.Sprintf("%.2f exceeds the parent's remaining length %.2f", length, parent.ReturnInfo.RemainingLength))
	}
	if sequence <= 0 {
		return nil, NewValidationError("sequence", "must be positive")
	}
	at = at.UTC()

	id := uuid.NewString()
	ident := Identity{
		ReceivedAt:   parent.ReceivedAt,
		SupplierCode: parent.SupplierCode,
		BatchCode:    parent.BatchCode,
		Sequence:     sequence,
	}
	dl := decimal.NewFromFloat(length)

	lineValue := decimal.Zero
	if parent.OriginalLength > 0 {
		lineValue = parent.LineValue.Mul(dl).Div(decimal.NewFromFloat(parent.OriginalLength)).Round(MoneyPlaces)
	}

	mappedAt := at
	child := &Roll{
		ID:                id,
		RollNumber:        ident.RollNumber(),
		Barcode:           ident.Barcode(id),
		SupplierCode:      parent.SupplierCode,
		BatchCode:         parent.BatchCode,
		SequenceKey:       ident.SequenceKey(),
		Sequence:          sequence,
		ReceivedAt:        parent.ReceivedAt,
		WidthInches:       parent.WidthInches,
		OriginalLength:    length,
		CurrentLength:     length,
		Descriptors:       parent.Descriptors,
		BaseCostPerUnit:   parent.BaseCostPerUnit,
		LineValue:         lineValue,
		LandedCostPerUnit: parent.LandedCostPerUnit,
		TotalLandedCost:   parent.LandedCostPerUnit.Mul(dl).Round(MoneyPlaces),
		AllocatedCost:     decimal.Zero,
		SKUID:             parent.SKUID,
		BatchID:           parent.BatchID,
		SupplierID:        parent.SupplierID,
		Source:            parent.Source,
		Status:            RollStatusMapped,
		MappedAt:          &mappedAt,
		ParentRollID:      parent.ID,
		CreatedAt:         at,
		UpdatedAt:         at,
		DomainEvents:      make([]DomainEvent, 0),
	}
	if parent.QRPayload != "" {
		child.RefreshQR()
	}
	parent.ReturnInfo.SpawnedRollID = child.ID

	child.addEvent(&RollSpawnedEvent{
		RollID:       child.ID,
		ParentRollID: parent.ID,
		RollNumber:   child.RollNumber,
		SKUID:        child.SKUID,
		Length:       length,
		SpawnedAt:    at,
	})

	return child, nil
}

// Identity returns the inputs the roll number and barcode were derived from
func (r *Roll) Identity() Identity {
	return Identity{
		ReceivedAt:   r.ReceivedAt,
		SupplierCode: r.SupplierCode,
		BatchCode:    r.BatchCode,
		Sequence:     r.Sequence,
	}
}

// guard reports a state conflict when op is not allowed from the current status
func (r *Roll) guard(op Operation) (RollStatus, error) {
	next, ok := r.Status.Next(op)
	if !ok {
		return "", &StateConflictError{
			RollID:    r.ID,
			Operation: op,
			Actual:    r.Status,
			Expected:  AllowedFrom(op),
		}
	}
	return next, nil
}

// transition moves the roll along op or reports a state conflict
func (r *Roll) transition(op Operation, at time.Time) (RollStatus, error) {
	next, err := r.guard(op)
	if err != nil {
		return "", err
	}
	from := r.Status
	r.Status = next
	r.UpdatedAt = at.UTC()
	return from, nil
}

// Classify links an Unmapped roll to a SKU
func (r *Roll) Classify(skuID, actor string, at time.Time) error {
	if _, err := r.guard(OpClassify); err != nil {
		return err
	}
	if strings.TrimSpace(skuID) == "" {
		return NewValidationError("skuId", "is required")
	}
	if _, err := r.transition(OpClassify, at); err != nil {
		return err
	}
	mappedAt := at.UTC()
	r.SKUID = skuID
	r.MappedAt = &mappedAt

	r.addEvent(&RollClassifiedEvent{
		RollID:       r.ID,
		SKUID:        skuID,
		ClassifiedBy: actor,
		ClassifiedAt: mappedAt,
	})
	return nil
}

// Allocate reserves a Mapped roll for an order line
func (r *Roll) Allocate(orderLineRef, actor string, at time.Time) error {
	if _, err := r.guard(OpAllocate); err != nil {
		return err
	}
	if strings.TrimSpace(orderLineRef) == "" {
		return NewValidationError("orderLineRef", "is required")
	}
	if _, err := r.transition(OpAllocate, at); err != nil {
		return err
	}
	r.Allocation = &AllocationDetails{
		OrderLineRef: orderLineRef,
		AllocatedAt:  at.UTC(),
		AllocatedBy:  actor,
	}

	r.addEvent(&RollAllocatedEvent{
		RollID:       r.ID,
		SKUID:        r.SKUID,
		OrderLineRef: orderLineRef,
		Length:       r.CurrentLength,
		AllocatedBy:  actor,
		AllocatedAt:  at.UTC(),
	})
	return nil
}

// Deallocate releases the reservation and returns the roll to Mapped
func (r *Roll) Deallocate(actor string, at time.Time) error {
	if _, err := r.transition(OpDeallocate, at); err != nil {
		return err
	}
	ref := ""
	if r.Allocation != nil {
		ref = r.Allocation.OrderLineRef
	}
	r.Allocation = nil

	r.addEvent(&RollDeallocatedEvent{
		RollID:        r.ID,
		OrderLineRef:  ref,
		DeallocatedBy: actor,
		DeallocatedAt: at.UTC(),
	})
	return nil
}

// Dispatch ships an Allocated roll. The allocation details are kept.
func (r *Roll) Dispatch(shipmentRef, actor string, at time.Time) error {
	if _, err := r.guard(OpDispatch); err != nil {
		return err
	}
	if strings.TrimSpace(shipmentRef) == "" {
		return NewValidationError("shipmentRef", "is required")
	}
	if _, err := r.transition(OpDispatch, at); err != nil {
		return err
	}
	r.Shipment = &ShipmentDetails{
		ShipmentRef:  shipmentRef,
		DispatchedAt: at.UTC(),
		DispatchedBy: actor,
	}

	orderLineRef := ""
	if r.Allocation != nil {
		orderLineRef = r.Allocation.OrderLineRef
	}
	r.addEvent(&RollDispatchedEvent{
		RollID:       r.ID,
		ShipmentRef:  shipmentRef,
		OrderLineRef: orderLineRef,
		Length:       r.CurrentLength,
		DispatchedBy: actor,
		DispatchedAt: at.UTC(),
	})
	return nil
}

// Return retires a Dispatched roll. Its current length drops to zero and the
// reported salvageable length is recorded for a possible remainder roll.
func (r *Roll) Return(remainingLength float64, reason, actor string, at time.Time) error {
	if _, err := r.guard(OpReturn); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return NewValidationError("reason", "is required")
	}
	if remainingLength < 0 {
		return NewValidationError("remainingLength", "must not be negative")
	}
	if remainingLength > r.CurrentLength {
		return NewValidationError("remainingLength",
			fmt.Sprintf("%.2f exceeds current length %.2f", remainingLength, r.CurrentLength))
	}
	if _, err := r.transition(OpReturn, at); err != nil {
		return err
	}
	r.CurrentLength = 0
	r.ReturnInfo = &ReturnDetails{
		Reason:          reason,
		RemainingLength: remainingLength,
		ReturnedAt:      at.UTC(),
		ReturnedBy:      actor,
	}

	r.addEvent(&RollReturnedEvent{
		RollID:          r.ID,
		Reason:          reason,
		RemainingLength: remainingLength,
		ReturnedBy:      actor,
		ReturnedAt:      at.UTC(),
	})
	return nil
}

// ShouldSpawnRemainder reports whether the recorded return leaves enough
// material for a new roll. The threshold is exclusive.
func (r *Roll) ShouldSpawnRemainder(minUsableLength float64) bool {
	return r.ReturnInfo != nil && r.ReturnInfo.RemainingLength > minUsableLength
}

// Scrap writes the roll off
func (r *Roll) Scrap(reason, actor string, at time.Time) error {
	if _, err := r.guard(OpScrap); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return NewValidationError("reason", "is required")
	}
	from, err := r.transition(OpScrap, at)
	if err != nil {
		return err
	}
	r.ScrapInfo = &ScrapDetails{
		Reason:     reason,
		FromStatus: from,
		ScrappedAt: at.UTC(),
		ScrappedBy: actor,
	}

	r.addEvent(&RollScrappedEvent{
		RollID:     r.ID,
		FromStatus: from,
		Reason:     reason,
		ScrappedBy: actor,
		ScrappedAt: at.UTC(),
	})
	return nil
}

// AcceptsLandedCost reports whether allocator shares change this roll's cost
// fields. Rolls that have left stock only receive informational shares.
func (r *Roll) AcceptsLandedCost() bool {
	switch r.Status {
	case RollStatusUnmapped, RollStatusMapped, RollStatusAllocated:
		return true
	default:
		return false
	}
}

// ApplyLandedCost adds a share of a cost entry to the roll's cost basis.
// It returns false, leaving the roll untouched, when the roll no longer accepts cost.
func (r *Roll) ApplyLandedCost(entryID string, amount decimal.Decimal, at time.Time) bool {
	if !r.AcceptsLandedCost() {
		return false
	}
	r.AllocatedCost = r.AllocatedCost.Add(amount)
	r.TotalLandedCost = r.TotalLandedCost.Add(amount)
	if r.CurrentLength > 0 {
		perUnit := amount.Div(decimal.NewFromFloat(r.CurrentLength))
		r.LandedCostPerUnit = r.LandedCostPerUnit.Add(perUnit).Round(2 * MoneyPlaces)
	}
	r.UpdatedAt = at.UTC()
	if r.QRPayload != "" {
		r.RefreshQR()
	}

	r.addEvent(&LandedCostAppliedEvent{
		RollID:            r.ID,
		CostEntryID:       entryID,
		Amount:            amount,
		LandedCostPerUnit: r.LandedCostPerUnit,
		AppliedAt:         at.UTC(),
	})
	return true
}

// IsEligibleFor reports whether the roll can satisfy a demand line for skuID
func (r *Roll) IsEligibleFor(skuID string, minLength float64) bool {
	return r.Status == RollStatusMapped && r.SKUID == skuID && r.CurrentLength >= minLength
}

type qrPayload struct {
	RollID     string `json:"rollId"`
	SKUID      string `json:"skuId,omitempty"`
	BatchID    string `json:"batchId,omitempty"`
	SupplierID string `json:"supplierId"`
	Width      int    `json:"width"`
	Length     string `json:"length"`
	LandedCost string `json:"landedCost"`
}

// RefreshQR rebuilds the QR payload from the current roll state
func (r *Roll) RefreshQR() {
	payload, _ := json.Marshal(qrPayload{
		RollID:     r.ID,
		SKUID:      r.SKUID,
		BatchID:    r.BatchID,
		SupplierID: r.SupplierID,
		Width:      int(r.WidthInches),
		Length:     decimal.NewFromFloat(r.CurrentLength).String(),
		LandedCost: r.LandedCostPerUnit.StringFixed(MoneyPlaces),
	})
	r.QRPayload = string(payload)
}

// Validate checks the invariants every persisted roll must hold
func (r *Roll) Validate() error {
	if !r.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", r.Status))
	}
	if r.CurrentLength < 0 || r.CurrentLength > r.OriginalLength {
		return NewValidationError("currentLength",
			fmt.Sprintf("%.2f must be within 0..%.2f", r.CurrentLength, r.OriginalLength))
	}
	if (r.Status == RollStatusAllocated || r.Status == RollStatusDispatched) && r.Allocation == nil {
		return NewValidationError("allocation", fmt.Sprintf("required in status %s", r.Status))
	}
	if r.Status != RollStatusUnmapped && r.Status != RollStatusScrap && r.SKUID == "" {
		return NewValidationError("skuId", fmt.Sprintf("required in status %s", r.Status))
	}
	if !VerifyBarcode(r.Barcode, r.ID) {
		return NewValidationError("barcode", "checksum does not match roll identity")
	}
	return nil
}

func (r *Roll) addEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// GetDomainEvents returns all domain events
func (r *Roll) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}

// ClearDomainEvents clears all domain events
func (r *Roll) ClearDomainEvents() {
	r.DomainEvents = make([]DomainEvent, 0)
}
