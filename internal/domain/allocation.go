package domain

import (
	"sort"
	"strings"
)

// AllocationRequest is one unit of sales demand for whole rolls
type AllocationRequest struct {
	SKUID         string
	RequiredCount int
	MinLength     float64
	OrderLineRef  string
}

// Validate checks the request shape. Stock is not consulted.
func (r AllocationRequest) Validate() error {
	if strings.TrimSpace(r.SKUID) == "" {
		return NewValidationError("skuId", "is required")
	}
	if r.RequiredCount <= 0 {
		return NewValidationError("requiredCount", "must be positive")
	}
	if r.MinLength < 0 {
		return NewValidationError("minLength", "must not be negative")
	}
	if strings.TrimSpace(r.OrderLineRef) == "" {
		return NewValidationError("orderLineRef", "is required")
	}
	return nil
}

// SortFIFO orders rolls oldest received first. Ties fall back to roll number,
// then id, so the order is total.
func SortFIFO(rolls []*Roll) {
	sort.SliceStable(rolls, func(i, j int) bool {
		a, b := rolls[i], rolls[j]
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		if a.RollNumber != b.RollNumber {
			return a.RollNumber < b.RollNumber
		}
		return a.ID < b.ID
	})
}

// SelectFIFO picks the RequiredCount oldest eligible rolls from candidates.
// Ineligible candidates are ignored. When fewer than RequiredCount qualify the
// result is an InsufficientStockError and no rolls.
func SelectFIFO(req AllocationRequest, candidates []*Roll) ([]*Roll, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	eligible := make([]*Roll, 0, len(candidates))
	for _, r := range candidates {
		if r.IsEligibleFor(req.SKUID, req.MinLength) {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) < req.RequiredCount {
		return nil, &InsufficientStockError{
			SKUID:     req.SKUID,
			Required:  req.RequiredCount,
			Available: len(eligible),
			MinLength: req.MinLength,
		}
	}

	SortFIFO(eligible)
	return eligible[:req.RequiredCount], nil
}
