package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostType classifies an incidental acquisition cost
type CostType string

const (
	CostTypeFreight  CostType = "freight"
	CostTypeDuty     CostType = "duty"
	CostTypeClearing CostType = "clearing"
	CostTypeMisc     CostType = "misc"
)

// IsValid checks if the cost type is valid
func (t CostType) IsValid() bool {
	switch t {
	case CostTypeFreight, CostTypeDuty, CostTypeClearing, CostTypeMisc:
		return true
	default:
		return false
	}
}

// CostBasis is the measure a shared cost is proportioned by
type CostBasis string

const (
	BasisRoll  CostBasis = "ROLL"  // equal share per roll
	BasisMeter CostBasis = "METER" // by current length
	BasisValue CostBasis = "VALUE" // by declared line value
)

// IsValid checks if the basis is valid
func (b CostBasis) IsValid() bool {
	switch b {
	case BasisRoll, BasisMeter, BasisValue:
		return true
	default:
		return false
	}
}

// ParseCostType accepts any letter case
func ParseCostType(s string) (CostType, error) {
	t := CostType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", NewValidationError("type", fmt.Sprintf("unknown cost type %q", s))
	}
	return t, nil
}

// ParseCostBasis accepts any letter case
func ParseCostBasis(s string) (CostBasis, error) {
	b := CostBasis(strings.ToUpper(strings.TrimSpace(s)))
	if !b.IsValid() {
		return "", NewValidationError("basis", fmt.Sprintf("unknown cost basis %q", s))
	}
	return b, nil
}

// LandedCostEntry is one post-receipt cost raised on a purchase invoice
type LandedCostEntry struct {
	ID                string          `bson:"_id" json:"id"`
	PurchaseInvoiceID string          `bson:"purchaseInvoiceId,omitempty" json:"purchaseInvoiceId,omitempty"`
	ReceivingEventID  string          `bson:"receivingEventId" json:"receivingEventId"`
	Type              CostType        `bson:"type" json:"type"`
	Basis             CostBasis       `bson:"basis" json:"basis"`
	Amount            decimal.Decimal `bson:"amount" json:"amount"`
	Description       string          `bson:"description,omitempty" json:"description,omitempty"`
	Allocated         bool            `bson:"allocated" json:"allocated"`
	AllocatedAt       *time.Time      `bson:"allocatedAt,omitempty" json:"allocatedAt,omitempty"`
	AllocatedBy       string          `bson:"allocatedBy,omitempty" json:"allocatedBy,omitempty"`
	Version           int64           `bson:"version" json:"version"`
	CreatedAt         time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// NewLandedCostEntry creates an unallocated cost entry. An empty id is generated.
func NewLandedCostEntry(id, receivingEventID, purchaseInvoiceID string, costType CostType, basis CostBasis, amount decimal.Decimal, description string) (*LandedCostEntry, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	e := &LandedCostEntry{
		ID:                id,
		PurchaseInvoiceID: purchaseInvoiceID,
		ReceivingEventID:  receivingEventID,
		Type:              costType,
		Basis:             basis,
		Amount:            amount,
		Description:       description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the entry shape
func (e *LandedCostEntry) Validate() error {
	if strings.TrimSpace(e.ReceivingEventID) == "" {
		return NewValidationError("receivingEventId", "is required")
	}
	if !e.Type.IsValid() {
		return NewValidationError("type", fmt.Sprintf("unknown cost type %q", e.Type))
	}
	if !e.Basis.IsValid() {
		return NewValidationError("basis", fmt.Sprintf("unknown cost basis %q", e.Basis))
	}
	if !e.Amount.IsPositive() {
		return NewValidationError("amount", "must be positive")
	}
	return nil
}

// MarkAllocated records that the entry has been distributed. An entry is
// distributed at most once.
func (e *LandedCostEntry) MarkAllocated(actor string, at time.Time) error {
	if e.Allocated {
		return fmt.Errorf("%w: cost entry %s already allocated", ErrStateConflict, e.ID)
	}
	at = at.UTC()
	e.Allocated = true
	e.AllocatedAt = &at
	e.AllocatedBy = actor
	e.UpdatedAt = at
	return nil
}

// CostShare is the part of one cost entry assigned to one roll
type CostShare struct {
	RollID string
	Basis  decimal.Decimal
	Amount decimal.Decimal
}

// BasisWeight is the roll's weight under basis
func BasisWeight(basis CostBasis, r *Roll) decimal.Decimal {
	switch basis {
	case BasisRoll:
		return decimal.NewFromInt(1)
	case BasisMeter:
		return decimal.NewFromFloat(r.CurrentLength)
	case BasisValue:
		return r.LineValue
	default:
		return decimal.Zero
	}
}

// AllocateCost splits entry.Amount over rolls in proportion to their basis
// values. Shares are rounded to MoneyPlaces and the rounding residual goes to
// the roll with the largest basis, so the shares always sum to the amount.
// A zero basis sum yields no shares. Rolls with a zero basis get no share.
func AllocateCost(entry *LandedCostEntry, rolls []*Roll) []CostShare {
	if len(rolls) == 0 || !entry.Amount.IsPositive() {
		return nil
	}

	bases := make([]decimal.Decimal, len(rolls))
	total := decimal.Zero
	for i, r := range rolls {
		b := BasisWeight(entry.Basis, r)
		if b.IsNegative() {
			b = decimal.Zero
		}
		bases[i] = b
		total = total.Add(b)
	}
	if total.IsZero() {
		return nil
	}

	shares := make([]CostShare, 0, len(rolls))
	distributed := decimal.Zero
	largest := -1
	for i, r := range rolls {
		if bases[i].IsZero() {
			continue
		}
		amount := entry.Amount.Mul(bases[i]).Div(total).Round(MoneyPlaces)
		distributed = distributed.Add(amount)
		shares = append(shares, CostShare{RollID: r.ID, Basis: bases[i], Amount: amount})
		if largest < 0 || bases[i].GreaterThan(shares[largest].Basis) {
			largest = len(shares) - 1
		}
	}

	if residual := entry.Amount.Sub(distributed); !residual.IsZero() {
		shares[largest].Amount = shares[largest].Amount.Add(residual)
	}
	return shares
}
