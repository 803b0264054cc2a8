package application

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/resilience"
	"github.com/textile-backoffice/roll-inventory/pkg/validation"
)

// Allocation outcomes recorded in metrics
const (
	allocationSucceeded    = "allocated"
	allocationInsufficient = "insufficient_stock"
	allocationFailed       = "failed"
)

// AllocationService reserves whole rolls against sales demand, oldest stock first
type AllocationService struct {
	rolls   domain.RollRepository
	tx      domain.TransactionManager
	retry   *resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(rolls domain.RollRepository, tx domain.TransactionManager, m *metrics.Metrics, logger *logging.Logger) *AllocationService {
	return &AllocationService{
		rolls:   rolls,
		tx:      tx,
		retry:   conflictRetryConfig(),
		metrics: m,
		logger:  logger.WithComponent("allocation"),
	}
}

// conflictRetryConfig re-runs a unit that lost a conditional write to another
// writer. The re-run reads fresh stock, so it either wins or reports a real
// shortage.
func conflictRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialDelay = 5 * time.Millisecond
	cfg.MaxDelay = 100 * time.Millisecond
	cfg.RetryableErrors = func(err error) bool {
		return stderrors.Is(err, domain.ErrConcurrentModification)
	}
	return cfg
}

// Allocate reserves RequiredCount Mapped rolls of the SKU at least MinLength
// long for the order line. Either every roll is reserved or none is.
func (s *AllocationService) Allocate(ctx context.Context, cmd AllocateCommand) (*AllocationResultDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}
	req := domain.AllocationRequest{
		SKUID:         cmd.SKUID,
		RequiredCount: cmd.RequiredCount,
		MinLength:     cmd.MinLength,
		OrderLineRef:  cmd.OrderLineRef,
	}
	if err := req.Validate(); err != nil {
		return nil, toAppError(err)
	}

	log := s.logger.WithContext(ctx).WithOrderLine(cmd.OrderLineRef)

	allocated, err := resilience.RetryWithResult(ctx, s.retry, func() ([]*domain.Roll, error) {
		var claimed []*domain.Roll
		err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			candidates, err := s.rolls.FindAvailable(txCtx, req.SKUID, req.MinLength)
			if err != nil {
				return err
			}
			selected, err := domain.SelectFIFO(req, candidates)
			if err != nil {
				return err
			}

			now := time.Now()
			for _, roll := range selected {
				if err := roll.Allocate(req.OrderLineRef, cmd.Actor, now); err != nil {
					return err
				}
				if err := s.rolls.Update(txCtx, roll); err != nil {
					return err
				}
			}
			claimed = selected
			return nil
		})
		return claimed, err
	})
	if err != nil {
		switch {
		case stderrors.Is(err, domain.ErrInsufficientStock):
			s.metrics.RecordAllocation(allocationInsufficient, 0)
			log.Warn("Insufficient stock for allocation", "skuId", req.SKUID, "required", req.RequiredCount, "error", err)
		default:
			s.metrics.RecordAllocation(allocationFailed, 0)
			log.WithError(err).Error("Failed to allocate rolls", "skuId", req.SKUID)
		}
		return nil, toAppError(err)
	}

	s.metrics.RecordAllocation(allocationSucceeded, len(allocated))
	s.metrics.RecordTransition(string(domain.RollStatusMapped), string(domain.RollStatusAllocated), len(allocated))
	for _, roll := range allocated {
		s.logger.Transition(ctx, roll.ID, string(domain.RollStatusMapped), string(domain.RollStatusAllocated), cmd.Actor)
	}
	s.logger.Audit(ctx, "roll.allocate", "order_line", req.OrderLineRef, cmd.Actor, map[string]any{
		"skuId": req.SKUID,
		"count": len(allocated),
	})
	log.Info("Allocated rolls", "skuId", req.SKUID, "count", len(allocated))

	return &AllocationResultDTO{OrderLineRef: req.OrderLineRef, Rolls: ToRollDTOs(allocated)}, nil
}

// Deallocate returns every roll reserved for the order line to Mapped and
// reports how many moved
func (s *AllocationService) Deallocate(ctx context.Context, cmd DeallocateCommand) (*DeallocationResultDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}

	released, err := resilience.RetryWithResult(ctx, s.retry, func() ([]*domain.Roll, error) {
		var rolls []*domain.Roll
		err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			var err error
			rolls, err = s.rolls.FindAllocatedTo(txCtx, cmd.OrderLineRef)
			if err != nil {
				return err
			}
			now := time.Now()
			for _, roll := range rolls {
				if err := roll.Deallocate(cmd.Actor, now); err != nil {
					return err
				}
				if err := s.rolls.Update(txCtx, roll); err != nil {
					return err
				}
			}
			return nil
		})
		return rolls, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithOrderLine(cmd.OrderLineRef).WithError(err).Error("Failed to deallocate rolls")
		return nil, toAppError(err)
	}

	s.metrics.RecordTransition(string(domain.RollStatusAllocated), string(domain.RollStatusMapped), len(released))
	s.logger.Audit(ctx, "roll.deallocate", "order_line", cmd.OrderLineRef, cmd.Actor, map[string]any{
		"count": len(released),
	})
	s.logger.WithContext(ctx).Info("Deallocated rolls", "orderLineRef", cmd.OrderLineRef, "count", len(released))

	return &DeallocationResultDTO{OrderLineRef: cmd.OrderLineRef, Released: len(released)}, nil
}
