package application

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/resilience"
	"github.com/textile-backoffice/roll-inventory/pkg/validation"
)

// LandedCostService distributes post-receipt costs over the rolls of a receipt
type LandedCostService struct {
	rolls   domain.RollRepository
	costs   domain.LandedCostRepository
	tx      domain.TransactionManager
	retry   *resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewLandedCostService creates a new LandedCostService
func NewLandedCostService(
	rolls domain.RollRepository,
	costs domain.LandedCostRepository,
	tx domain.TransactionManager,
	m *metrics.Metrics,
	logger *logging.Logger,
) *LandedCostService {
	return &LandedCostService{
		rolls:   rolls,
		costs:   costs,
		tx:      tx,
		retry:   conflictRetryConfig(),
		metrics: m,
		logger:  logger.WithComponent("landed-cost"),
	}
}

type parsedEntry struct {
	input     LandedCostInput
	costType  domain.CostType
	costBasis domain.CostBasis
}

type landedCostOutcome struct {
	rolls   []*domain.Roll
	deltas  map[string]*RollCostDeltaDTO
	entries []*CostEntryStatusDTO
	applied []*domain.LandedCostEntry
}

// AllocateLandedCosts stores the entries and spreads each unallocated one over
// the rolls received under ReceivingEventID, spawned remainders included.
// Entries already allocated are reported and skipped. Rolls that have left
// stock get informational shares: reported, counted in the basis, not applied.
func (s *LandedCostService) AllocateLandedCosts(ctx context.Context, cmd AllocateLandedCostsCommand) (*LandedCostResultDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}
	inputs, err := parseCostInputs(cmd.Entries)
	if err != nil {
		return nil, toAppError(err)
	}

	outcome, err := resilience.RetryWithResult(ctx, s.retry, func() (*landedCostOutcome, error) {
		var out *landedCostOutcome
		err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			var err error
			out, err = s.distribute(txCtx, cmd, inputs)
			return err
		})
		return out, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to allocate landed costs",
			"receivingEventId", cmd.ReceivingEventID)
		return nil, toAppError(err)
	}

	for _, entry := range outcome.applied {
		amount, _ := entry.Amount.Float64()
		s.metrics.RecordLandedCost(string(entry.Basis), string(entry.Type), amount)
		s.logger.Audit(ctx, "landed_cost.allocate", "landed_cost", entry.ID, cmd.Actor, map[string]any{
			"receivingEventId": cmd.ReceivingEventID,
			"basis":            string(entry.Basis),
			"amount":           entry.Amount.String(),
		})
	}
	s.logger.WithContext(ctx).Info("Allocated landed costs",
		"receivingEventId", cmd.ReceivingEventID,
		"entries", len(outcome.applied),
		"rolls", len(outcome.deltas))

	result := &LandedCostResultDTO{
		ReceivingEventID: cmd.ReceivingEventID,
		Rolls:            make([]*RollCostDeltaDTO, 0, len(outcome.deltas)),
		Entries:          outcome.entries,
	}
	for _, roll := range outcome.rolls {
		if d, ok := outcome.deltas[roll.ID]; ok {
			d.LandedCostPerUnit = roll.LandedCostPerUnit
			result.Rolls = append(result.Rolls, d)
		}
	}
	return result, nil
}

func (s *LandedCostService) distribute(ctx context.Context, cmd AllocateLandedCostsCommand, inputs []parsedEntry) (*landedCostOutcome, error) {
	rolls, err := s.rolls.FindByGoodsReceipt(ctx, cmd.ReceivingEventID)
	if err != nil {
		return nil, err
	}
	domain.SortFIFO(rolls)

	out := &landedCostOutcome{
		rolls:   rolls,
		deltas:  make(map[string]*RollCostDeltaDTO),
		entries: make([]*CostEntryStatusDTO, 0, len(inputs)),
	}
	changed := make(map[string]bool)
	now := time.Now()

	for _, in := range inputs {
		entry, err := s.loadOrCreate(ctx, cmd.ReceivingEventID, in)
		if err != nil {
			return nil, err
		}
		status := &CostEntryStatusDTO{
			EntryID:     entry.ID,
			Amount:      entry.Amount,
			Basis:       string(entry.Basis),
			Distributed: decimal.Zero,
		}
		out.entries = append(out.entries, status)

		if entry.Allocated {
			status.Status = CostEntryAlreadyAllocated
			continue
		}

		shares := domain.AllocateCost(entry, rolls)
		if len(shares) == 0 {
			status.Status = CostEntryNoBasis
			if err := s.costs.Save(ctx, entry); err != nil {
				return nil, err
			}
			continue
		}

		byID := make(map[string]*domain.Roll, len(rolls))
		for _, r := range rolls {
			byID[r.ID] = r
		}
		for _, share := range shares {
			roll := byID[share.RollID]
			applied := roll.ApplyLandedCost(entry.ID, share.Amount, now)
			if applied {
				changed[roll.ID] = true
			}
			d, ok := out.deltas[roll.ID]
			if !ok {
				d = &RollCostDeltaDTO{RollID: roll.ID, RollNumber: roll.RollNumber, Delta: decimal.Zero}
				out.deltas[roll.ID] = d
			}
			d.Delta = d.Delta.Add(share.Amount)
			d.Informational = !applied
			status.Distributed = status.Distributed.Add(share.Amount)
		}

		if err := entry.MarkAllocated(cmd.Actor, now); err != nil {
			return nil, err
		}
		if err := s.costs.Save(ctx, entry); err != nil {
			return nil, err
		}
		status.Status = CostEntryAllocated
		out.applied = append(out.applied, entry)
	}

	for _, roll := range rolls {
		if !changed[roll.ID] {
			continue
		}
		if err := s.rolls.Update(ctx, roll); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// loadOrCreate returns the stored entry with the input's id or a new one
func (s *LandedCostService) loadOrCreate(ctx context.Context, receivingEventID string, in parsedEntry) (*domain.LandedCostEntry, error) {
	if in.input.ID != "" {
		existing, err := s.costs.FindByID(ctx, in.input.ID)
		if err == nil {
			if existing.ReceivingEventID != receivingEventID {
				return nil, domain.NewValidationError("entries.id",
					"entry "+existing.ID+" belongs to receiving event "+existing.ReceivingEventID)
			}
			return existing, nil
		}
		if !stderrors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return domain.NewLandedCostEntry(in.input.ID, receivingEventID, in.input.PurchaseInvoiceID,
		in.costType, in.costBasis, in.input.Amount, in.input.Description)
}

func parseCostInputs(entries []LandedCostInput) ([]parsedEntry, error) {
	parsed := make([]parsedEntry, 0, len(entries))
	for i, e := range entries {
		costType, err := domain.ParseCostType(e.Type)
		if err != nil {
			return nil, domain.NewValidationError("entries["+strconv.Itoa(i)+"].type", err.(*domain.ValidationError).Reason)
		}
		basis, err := domain.ParseCostBasis(e.Basis)
		if err != nil {
			return nil, domain.NewValidationError("entries["+strconv.Itoa(i)+"].basis", err.(*domain.ValidationError).Reason)
		}
		if !e.Amount.IsPositive() {
			return nil, domain.NewValidationError("entries["+strconv.Itoa(i)+"].amount", "must be positive")
		}
		parsed = append(parsed, parsedEntry{input: e, costType: costType, costBasis: basis})
	}
	return parsed, nil
}
