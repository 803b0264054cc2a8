package application

import (
	"time"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
)

// ToRollDTO converts a domain roll to a DTO
func ToRollDTO(r *domain.Roll) *RollDTO {
	if r == nil {
		return nil
	}
	dto := &RollDTO{
		ID:                r.ID,
		RollNumber:        r.RollNumber,
		Barcode:           r.Barcode,
		QRPayload:         r.QRPayload,
		Status:            string(r.Status),
		SKUID:             r.SKUID,
		BatchID:           r.BatchID,
		SupplierID:        r.SupplierID,
		WidthInches:       int(r.WidthInches),
		OriginalLength:    r.OriginalLength,
		CurrentLength:     r.CurrentLength,
		Category:          r.Descriptors.Category,
		GSM:               r.Descriptors.GSM,
		Quality:           r.Descriptors.Quality,
		BaseCostPerUnit:   r.BaseCostPerUnit,
		LineValue:         r.LineValue,
		LandedCostPerUnit: r.LandedCostPerUnit,
		TotalLandedCost:   r.TotalLandedCost,
		AllocatedCost:     r.AllocatedCost,
		PurchaseOrderID:   r.Source.PurchaseOrderID,
		GoodsReceiptID:    r.Source.GoodsReceiptID,
		PurchaseInvoiceID: r.Source.PurchaseInvoiceID,
		ParentRollID:      r.ParentRollID,
		ReceivedAt:        r.ReceivedAt,
		MappedAt:          r.MappedAt,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.Allocation != nil {
		dto.OrderLineRef = r.Allocation.OrderLineRef
		dto.AllocatedAt = timePtr(r.Allocation.AllocatedAt)
	}
	if r.Shipment != nil {
		dto.ShipmentRef = r.Shipment.ShipmentRef
		dto.DispatchedAt = timePtr(r.Shipment.DispatchedAt)
	}
	if r.ReturnInfo != nil {
		dto.ReturnedAt = timePtr(r.ReturnInfo.ReturnedAt)
		dto.ReturnReason = r.ReturnInfo.Reason
		dto.SpawnedRollID = r.ReturnInfo.SpawnedRollID
	}
	if r.ScrapInfo != nil {
		dto.ScrappedAt = timePtr(r.ScrapInfo.ScrappedAt)
		dto.ScrapReason = r.ScrapInfo.Reason
	}
	return dto
}

// ToRollDTOs converts a slice of rolls
func ToRollDTOs(rolls []*domain.Roll) []*RollDTO {
	dtos := make([]*RollDTO, len(rolls))
	for i, r := range rolls {
		dtos[i] = ToRollDTO(r)
	}
	return dtos
}

// ToBatchDTO converts a domain batch to a DTO
func ToBatchDTO(b *domain.Batch) *BatchDTO {
	if b == nil {
		return nil
	}
	return &BatchDTO{
		ID:         b.ID,
		SupplierID: b.SupplierID,
		Code:       b.Code,
		Notes:      b.Notes,
		ReceivedAt: b.ReceivedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
