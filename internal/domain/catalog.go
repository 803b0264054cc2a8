package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GSM is a fabric weight grade (grams per square metre)
type GSM struct {
	ID    string `bson:"_id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Value int    `bson:"value" json:"value"`
}

// Quality is a fabric quality grade
type Quality struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// Product is the catalog entry defined by category, GSM and quality
type Product struct {
	ID         string `bson:"_id" json:"id"`
	Code       string `bson:"code" json:"code"`
	Name       string `bson:"name" json:"name"`
	CategoryID string `bson:"categoryId" json:"categoryId"`
	GSMID      string `bson:"gsmId" json:"gsmId"`
	QualityID  string `bson:"qualityId" json:"qualityId"`
}

// SKU is a product at one width
type SKU struct {
	ID           string        `bson:"_id" json:"id"`
	ProductID    string        `bson:"productId" json:"productId"`
	Code         string        `bson:"code" json:"code"`
	WidthInches  Width         `bson:"widthInches" json:"widthInches"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// Supplier is a read-only supplier reference
type Supplier struct {
	ID   string `bson:"_id" json:"id"`
	Code string `bson:"code" json:"code"`
	Name string `bson:"name" json:"name"`
}

// NewSKU creates the SKU for product at width, coded <product code>-<width>
func NewSKU(product *Product, width Width) (*SKU, error) {
	if !width.IsValid() {
		return nil, NewValidationError("width", fmt.Sprintf("%d is not an allowed width", int(width)))
	}
	code := strings.ToUpper(strings.TrimSpace(product.Code))
	if code == "" {
		code = NormalizeCode(product.Name)
	}
	now := time.Now().UTC()
	sku := &SKU{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		Code:        fmt.Sprintf("%s-%d", code, int(width)),
		WidthInches: width,
		CreatedAt:   now,
	}
	sku.DomainEvents = []DomainEvent{&SKUCreatedEvent{
		SKUID:       sku.ID,
		ProductID:   product.ID,
		Code:        sku.Code,
		WidthInches: width,
		CreatedAt:   now,
	}}
	return sku, nil
}

// GetDomainEvents returns all domain events
func (s *SKU) GetDomainEvents() []DomainEvent {
	return s.DomainEvents
}

// ClearDomainEvents clears all domain events
func (s *SKU) ClearDomainEvents() {
	s.DomainEvents = nil
}
