package application

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/resilience"
	"github.com/textile-backoffice/roll-inventory/pkg/validation"
)

// ReceiptService registers received rolls and the batches they arrive in
type ReceiptService struct {
	rolls   domain.RollRepository
	batches domain.BatchRepository
	catalog domain.CatalogRepository
	tx      domain.TransactionManager
	locker  SequenceLocker
	retry   *resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(
	rolls domain.RollRepository,
	batches domain.BatchRepository,
	catalog domain.CatalogRepository,
	tx domain.TransactionManager,
	locker SequenceLocker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ReceiptService {
	return &ReceiptService{
		rolls:   rolls,
		batches: batches,
		catalog: catalog,
		tx:      tx,
		locker:  locker,
		retry:   conflictRetryConfig(),
		metrics: m,
		logger:  logger.WithComponent("receipt"),
	}
}

// CreateBatch opens a batch for a supplier delivery
func (s *ReceiptService) CreateBatch(ctx context.Context, cmd CreateBatchCommand) (*BatchDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}
	if _, err := s.catalog.FindSupplier(ctx, cmd.SupplierID); err != nil {
		return nil, toAppError(err)
	}

	batch, err := domain.NewBatch(cmd.SupplierID, cmd.Code, cmd.Notes, cmd.ReceivedAt)
	if err != nil {
		return nil, toAppError(err)
	}
	if err := s.batches.Save(ctx, batch); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to save batch", "supplierId", cmd.SupplierID)
		return nil, toAppError(err)
	}

	s.logger.Audit(ctx, "batch.create", "batch", batch.ID, cmd.Actor, map[string]any{"code": batch.Code})
	s.logger.WithContext(ctx).Info("Created batch", "batchId", batch.ID, "code", batch.Code)
	return ToBatchDTO(batch), nil
}

// UpdateBatchNotes replaces a batch's notes, the only field that changes after creation
func (s *ReceiptService) UpdateBatchNotes(ctx context.Context, cmd UpdateBatchNotesCommand) (*BatchDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}

	var batch *domain.Batch
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		batch, err = s.batches.FindByID(txCtx, cmd.BatchID)
		if err != nil {
			return err
		}
		batch.UpdateNotes(cmd.Notes, cmd.Actor, time.Now())
		return s.batches.Save(txCtx, batch)
	})
	if err != nil {
		return nil, toAppError(err)
	}

	s.logger.Audit(ctx, "batch.update_notes", "batch", batch.ID, cmd.Actor, nil)
	return ToBatchDTO(batch), nil
}

// CreateRolls registers the rolls of one goods receipt. Rolls with a SKU start
// Mapped, the rest Unmapped. Sequences continue from the highest stored under
// the receipt's sequence key; all rolls are written or none.
func (s *ReceiptService) CreateRolls(ctx context.Context, cmd CreateRollsCommand) (*CreateRollsResultDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}

	supplier, err := s.catalog.FindSupplier(ctx, cmd.SupplierID)
	if err != nil {
		return nil, toAppError(err)
	}

	receivedAt := cmd.ReceivedAt
	var batch *domain.Batch
	newBatch := false
	switch {
	case cmd.BatchID != "":
		batch, err = s.batches.FindByID(ctx, cmd.BatchID)
		if err != nil {
			return nil, toAppError(err)
		}
		if batch.SupplierID != supplier.ID {
			return nil, toAppError(domain.NewValidationError("batchId", "belongs to another supplier"))
		}
		if receivedAt.IsZero() {
			receivedAt = batch.ReceivedAt
		}
	case strings.TrimSpace(cmd.BatchCode) != "":
		if domain.NormalizeCode(cmd.BatchCode) == "" {
			return nil, toAppError(domain.NewValidationError("batchCode", "must contain letters or digits"))
		}
		newBatch = true
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	if err := s.checkItems(ctx, cmd.Items); err != nil {
		return nil, toAppError(err)
	}

	batchCode := domain.NormalizeCode(cmd.BatchCode)
	if batch != nil {
		batchCode = batch.Code
	}
	key := domain.Identity{ReceivedAt: receivedAt, SupplierCode: supplier.Code, BatchCode: batchCode}.SequenceKey()

	release, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, toAppError(err)
	}
	defer release()

	// a lock that expired mid-unit surfaces as a rollNumber conflict
	rolls, err := resilience.RetryWithResult(ctx, s.retry, func() ([]*domain.Roll, error) {
		var created []*domain.Roll
		err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			// built per attempt so a retried unit starts from fresh aggregates
			if newBatch {
				var err error
				if batch, err = domain.NewBatch(supplier.ID, batchCode, "", receivedAt); err != nil {
					return err
				}
				if err := s.batches.Save(txCtx, batch); err != nil {
					return err
				}
			}
			batchID := ""
			if batch != nil {
				batchID = batch.ID
			}

			last, err := s.rolls.MaxSequence(txCtx, key)
			if err != nil {
				return err
			}

			built := make([]*domain.Roll, 0, len(cmd.Items))
			for i, item := range cmd.Items {
				roll, err := domain.NewRoll(domain.NewRollParams{
					SupplierID:   supplier.ID,
					SupplierCode: supplier.Code,
					BatchID:      batchID,
					BatchCode:    batchCode,
					SKUID:        item.SKUID,
					Sequence:     last + i + 1,
					ReceivedAt:   receivedAt,
					WidthInches:  item.WidthInches,
					Length:       item.Length,
					Descriptors: domain.Descriptors{
						Category: item.Category,
						GSM:      item.GSM,
						Quality:  item.Quality,
					},
					BaseCostPerUnit: item.BaseCostPerUnit,
					LineValue:       item.LineValue,
					Source: domain.SourceRefs{
						PurchaseOrderID:   cmd.PurchaseOrderID,
						GoodsReceiptID:    cmd.GoodsReceiptID,
						PurchaseInvoiceID: cmd.InvoiceID,
					},
					GenerateQR: item.GenerateQR,
				})
				if err != nil {
					return itemError(i, err)
				}
				built = append(built, roll)
			}
			if err := s.rolls.Insert(txCtx, built...); err != nil {
				return err
			}
			created = built
			return nil
		})
		return created, err
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to create rolls",
			"supplierId", supplier.ID, "sequenceKey", key, "count", len(cmd.Items))
		return nil, toAppError(err)
	}

	mapped := 0
	for _, r := range rolls {
		if r.Status == domain.RollStatusMapped {
			mapped++
		}
	}
	s.metrics.RecordRollsCreated("receipt", string(domain.RollStatusMapped), mapped)
	s.metrics.RecordRollsCreated("receipt", string(domain.RollStatusUnmapped), len(rolls)-mapped)

	s.logger.Audit(ctx, "roll.receive", "goods_receipt", cmd.GoodsReceiptID, cmd.Actor, map[string]any{
		"count":       len(rolls),
		"sequenceKey": key,
	})
	s.logger.WithContext(ctx).Info("Created rolls",
		"supplierId", supplier.ID, "sequenceKey", key, "count", len(rolls), "mapped", mapped)

	result := &CreateRollsResultDTO{Rolls: ToRollDTOs(rolls)}
	if newBatch {
		result.Batch = ToBatchDTO(batch)
	}
	return result, nil
}

// checkItems rejects items whose SKU is unknown or cut at a different width
func (s *ReceiptService) checkItems(ctx context.Context, items []CreateRollItem) error {
	skus := make(map[string]*domain.SKU)
	for i, item := range items {
		if _, err := domain.ParseWidth(item.WidthInches); err != nil {
			return itemError(i, err)
		}
		if item.SKUID == "" {
			continue
		}
		sku, ok := skus[item.SKUID]
		if !ok {
			found, err := s.catalog.FindSKU(ctx, item.SKUID)
			if err != nil {
				return err
			}
			sku = found
			skus[item.SKUID] = sku
		}
		if int(sku.WidthInches) != item.WidthInches {
			return itemError(i, domain.NewValidationError("widthInches", "does not match the SKU width "+sku.WidthInches.String()))
		}
	}
	return nil
}

// itemError prefixes a validation failure with the item's position
func itemError(index int, err error) error {
	if ve, ok := err.(*domain.ValidationError); ok {
		return domain.NewValidationError(itemField(index, ve.Field), ve.Reason)
	}
	return err
}

func itemField(index int, field string) string {
	return "items[" + strconv.Itoa(index) + "]." + field
}
