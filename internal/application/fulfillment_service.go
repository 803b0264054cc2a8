package application

import (
	"context"
	"time"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/resilience"
	"github.com/textile-backoffice/roll-inventory/pkg/validation"
)

// FulfillmentService ships reserved rolls, takes returns and writes rolls off
type FulfillmentService struct {
	rolls           domain.RollRepository
	tx              domain.TransactionManager
	locker          SequenceLocker
	minUsableLength float64
	retry           *resilience.RetryConfig
	metrics         *metrics.Metrics
	logger          *logging.Logger
}

// NewFulfillmentService creates a new FulfillmentService. A return must leave
// more than minUsableLength meters for a remainder roll to be spawned.
func NewFulfillmentService(
	rolls domain.RollRepository,
	tx domain.TransactionManager,
	locker SequenceLocker,
	minUsableLength float64,
	m *metrics.Metrics,
	logger *logging.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		rolls:           rolls,
		tx:              tx,
		locker:          locker,
		minUsableLength: minUsableLength,
		retry:           conflictRetryConfig(),
		metrics:         m,
		logger:          logger.WithComponent("fulfillment"),
	}
}

// Dispatch ships every listed roll under one shipment reference. Duplicate ids
// are ignored. Every roll must exist and be Allocated or nothing changes.
func (s *FulfillmentService) Dispatch(ctx context.Context, cmd DispatchCommand) (*DispatchResultDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}
	ids := uniqueIDs(cmd.RollIDs)

	shipped, err := resilience.RetryWithResult(ctx, s.retry, func() ([]*domain.Roll, error) {
		var rolls []*domain.Roll
		err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			found, err := s.rolls.FindByIDs(txCtx, ids)
			if err != nil {
				return err
			}
			byID := make(map[string]*domain.Roll, len(found))
			for _, r := range found {
				byID[r.ID] = r
			}

			rolls = make([]*domain.Roll, 0, len(ids))
			for _, id := range ids {
				roll, ok := byID[id]
				if !ok {
					return domain.NewNotFoundError("roll", id)
				}
				rolls = append(rolls, roll)
			}

			now := time.Now()
			for _, roll := range rolls {
				if err := roll.Dispatch(cmd.ShipmentRef, cmd.Actor, now); err != nil {
					return err
				}
			}
			for _, roll := range rolls {
				if err := s.rolls.Update(txCtx, roll); err != nil {
					return err
				}
			}
			return nil
		})
		return rolls, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to dispatch rolls",
			"shipmentRef", cmd.ShipmentRef, "count", len(ids))
		return nil, toAppError(err)
	}

	s.metrics.RecordTransition(string(domain.RollStatusAllocated), string(domain.RollStatusDispatched), len(shipped))
	s.logger.Audit(ctx, "roll.dispatch", "shipment", cmd.ShipmentRef, cmd.Actor, map[string]any{
		"count": len(shipped),
	})
	s.logger.WithContext(ctx).Info("Dispatched rolls", "shipmentRef", cmd.ShipmentRef, "count", len(shipped))

	return &DispatchResultDTO{ShipmentRef: cmd.ShipmentRef, Rolls: ToRollDTOs(shipped)}, nil
}

// ReturnRoll retires a Dispatched roll. When the reported remainder exceeds
// the minimum usable length a new Mapped roll is spawned for it in the same unit.
func (s *FulfillmentService) ReturnRoll(ctx context.Context, cmd ReturnRollCommand) (*ReturnResultDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}

	current, err := s.rolls.FindByID(ctx, cmd.RollID)
	if err != nil {
		return nil, toAppError(err)
	}

	// the spawned roll takes the next sequence under the parent's key
	if cmd.RemainingLength > s.minUsableLength {
		release, err := s.locker.Lock(ctx, current.SequenceKey)
		if err != nil {
			return nil, toAppError(err)
		}
		defer release()
	}

	var retired, spawned *domain.Roll
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		roll, err := s.rolls.FindByID(txCtx, cmd.RollID)
		if err != nil {
			return err
		}
		now := time.Now()
		if err := roll.Return(cmd.RemainingLength, cmd.Reason, cmd.Actor, now); err != nil {
			return err
		}

		var child *domain.Roll
		if roll.ShouldSpawnRemainder(s.minUsableLength) {
			last, err := s.rolls.MaxSequence(txCtx, roll.SequenceKey)
			if err != nil {
				return err
			}
			child, err = domain.NewSpawnedRoll(roll, last+1, cmd.RemainingLength, now)
			if err != nil {
				return err
			}
		}

		if err := s.rolls.Update(txCtx, roll); err != nil {
			return err
		}
		if child != nil {
			if err := s.rolls.Insert(txCtx, child); err != nil {
				return err
			}
		}
		retired, spawned = roll, child
		return nil
	})
	if err != nil {
		s.logger.WithContext(ctx).WithRoll(cmd.RollID, "").WithError(err).Error("Failed to return roll")
		return nil, toAppError(err)
	}

	s.metrics.RecordTransition(string(domain.RollStatusDispatched), string(domain.RollStatusReturned), 1)
	s.logger.Transition(ctx, retired.ID, string(domain.RollStatusDispatched), string(domain.RollStatusReturned), cmd.Actor)

	details := map[string]any{"remainingLength": cmd.RemainingLength, "reason": cmd.Reason}
	if spawned != nil {
		details["spawnedRollId"] = spawned.ID
		s.metrics.RecordRollsCreated("split", string(domain.RollStatusMapped), 1)
	}
	s.logger.Audit(ctx, "roll.return", "roll", retired.ID, cmd.Actor, details)
	s.logger.WithContext(ctx).WithRoll(retired.ID, retired.RollNumber).Info("Returned roll",
		"remainingLength", cmd.RemainingLength, "spawned", spawned != nil)

	return &ReturnResultDTO{RetiredRoll: ToRollDTO(retired), SpawnedRoll: ToRollDTO(spawned)}, nil
}

// Scrap writes a roll off from Unmapped, Mapped or Allocated
func (s *FulfillmentService) Scrap(ctx context.Context, cmd ScrapCommand) (*RollDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}

	var scrapped *domain.Roll
	var from domain.RollStatus
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		roll, err := s.rolls.FindByID(txCtx, cmd.RollID)
		if err != nil {
			return err
		}
		from = roll.Status
		if err := roll.Scrap(cmd.Reason, cmd.Actor, time.Now()); err != nil {
			return err
		}
		if err := s.rolls.Update(txCtx, roll); err != nil {
			return err
		}
		scrapped = roll
		return nil
	})
	if err != nil {
		s.logger.WithContext(ctx).WithRoll(cmd.RollID, "").WithError(err).Error("Failed to scrap roll")
		return nil, toAppError(err)
	}

	s.metrics.RecordTransition(string(from), string(domain.RollStatusScrap), 1)
	s.logger.Transition(ctx, scrapped.ID, string(from), string(domain.RollStatusScrap), cmd.Actor)
	s.logger.Audit(ctx, "roll.scrap", "roll", scrapped.ID, cmd.Actor, map[string]any{"reason": cmd.Reason})
	s.logger.WithContext(ctx).WithRoll(scrapped.ID, scrapped.RollNumber).Info("Scrapped roll", "from", string(from))

	return ToRollDTO(scrapped), nil
}

// uniqueIDs drops repeats and blanks, keeping first-seen order
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
