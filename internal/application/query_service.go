package application

import (
	"context"
	"strings"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/validation"
)

const defaultListLimit = 100

// RollQueryService handles roll read operations
type RollQueryService struct {
	rolls  domain.RollRepository
	logger *logging.Logger
}

// NewRollQueryService creates a new RollQueryService
func NewRollQueryService(rolls domain.RollRepository, logger *logging.Logger) *RollQueryService {
	return &RollQueryService{rolls: rolls, logger: logger.WithComponent("roll-query")}
}

// GetRoll retrieves a roll by id
func (s *RollQueryService) GetRoll(ctx context.Context, id string) (*RollDTO, error) {
	roll, err := s.rolls.FindByID(ctx, id)
	if err != nil {
		return nil, toAppError(err)
	}
	return ToRollDTO(roll), nil
}

// GetRollByBarcode looks a roll up by its scanned barcode. A malformed barcode
// is rejected before the lookup and a checksum that does not match the stored
// roll is rejected after it.
func (s *RollQueryService) GetRollByBarcode(ctx context.Context, barcode string) (*RollDTO, error) {
	barcode = strings.ToUpper(strings.TrimSpace(barcode))
	if _, err := domain.ParseBarcode(barcode); err != nil {
		return nil, toAppError(err)
	}
	roll, err := s.rolls.FindByBarcode(ctx, barcode)
	if err != nil {
		return nil, toAppError(err)
	}
	if !domain.VerifyBarcode(barcode, roll.ID) {
		s.logger.WithContext(ctx).WithRoll(roll.ID, roll.RollNumber).Warn("Barcode checksum mismatch", "barcode", barcode)
		return nil, toAppError(domain.NewValidationError("barcode", "checksum does not match"))
	}
	return ToRollDTO(roll), nil
}

// ListRolls returns rolls matching the filter, oldest received first
func (s *RollQueryService) ListRolls(ctx context.Context, query ListRollsQuery) ([]*RollDTO, error) {
	if appErr := validation.ValidateStruct(query); appErr != nil {
		return nil, appErr
	}
	filter := domain.RollFilter{
		SKUID:          query.SKUID,
		BatchID:        query.BatchID,
		SupplierID:     query.SupplierID,
		GoodsReceiptID: query.GoodsReceiptID,
		ParentRollID:   query.ParentRollID,
		Limit:          query.Limit,
		Offset:         query.Offset,
	}
	if query.Status != "" {
		status, err := domain.ParseRollStatus(strings.ToLower(query.Status))
		if err != nil {
			return nil, toAppError(err)
		}
		filter.Status = status
	}
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}

	rolls, err := s.rolls.List(ctx, filter)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list rolls")
		return nil, toAppError(err)
	}
	return ToRollDTOs(rolls), nil
}

// GetLineage follows ParentRollID links up to the original receipt and down
// through every remainder spawned from the roll
func (s *RollQueryService) GetLineage(ctx context.Context, id string) (*LineageDTO, error) {
	roll, err := s.rolls.FindByID(ctx, id)
	if err != nil {
		return nil, toAppError(err)
	}
	seen := map[string]bool{roll.ID: true}

	ancestors := make([]*domain.Roll, 0)
	for parentID := roll.ParentRollID; parentID != "" && !seen[parentID]; {
		parent, err := s.rolls.FindByID(ctx, parentID)
		if err != nil {
			return nil, toAppError(err)
		}
		seen[parent.ID] = true
		ancestors = append([]*domain.Roll{parent}, ancestors...)
		parentID = parent.ParentRollID
	}

	descendants := make([]*domain.Roll, 0)
	queue := []string{roll.ID}
	for len(queue) > 0 {
		children, err := s.rolls.List(ctx, domain.RollFilter{ParentRollID: queue[0]})
		if err != nil {
			return nil, toAppError(err)
		}
		queue = queue[1:]
		for _, child := range children {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			descendants = append(descendants, child)
			queue = append(queue, child.ID)
		}
	}

	return &LineageDTO{
		Roll:        ToRollDTO(roll),
		Ancestors:   ToRollDTOs(ancestors),
		Descendants: ToRollDTOs(descendants),
	}, nil
}
