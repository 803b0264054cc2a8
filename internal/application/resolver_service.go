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

// ResolverService classifies Unmapped rolls against the catalog, creating the
// SKU for a product and width when none exists yet
type ResolverService struct {
	rolls   domain.RollRepository
	catalog domain.CatalogRepository
	tx      domain.TransactionManager
	retry   *resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewResolverService creates a new ResolverService
func NewResolverService(
	rolls domain.RollRepository,
	catalog domain.CatalogRepository,
	tx domain.TransactionManager,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ResolverService {
	return &ResolverService{
		rolls:   rolls,
		catalog: catalog,
		tx:      tx,
		retry:   conflictRetryConfig(),
		metrics: m,
		logger:  logger.WithComponent("resolver"),
	}
}

type resolution struct {
	skuID   string
	created bool
}

// ResolveUnmapped processes every mapping on its own. A failing item is
// reported in its result and never stops the rest.
func (s *ResolverService) ResolveUnmapped(ctx context.Context, cmd ResolveUnmappedCommand) (*ResolveResultDTO, error) {
	if appErr := validation.ValidateStruct(cmd); appErr != nil {
		return nil, appErr
	}

	result := &ResolveResultDTO{Items: make([]*ResolveItemResultDTO, 0, len(cmd.Mappings))}
	for _, mapping := range cmd.Mappings {
		item := &ResolveItemResultDTO{RollID: mapping.RollID}
		result.Items = append(result.Items, item)

		res, err := s.resolveOne(ctx, mapping, cmd.Actor)
		if err != nil {
			appErr := toAppError(err)
			item.Error = appErr.Message
			item.Code = appErr.Code
			result.Failed++
			s.metrics.RecordResolve(false)
			s.logger.WithContext(ctx).WithRoll(mapping.RollID, "").Warn("Failed to resolve roll",
				"code", appErr.Code, "error", err)
			continue
		}

		item.Success = true
		item.SKUID = res.skuID
		item.SKUCreated = res.created
		result.Resolved++
		s.metrics.RecordResolve(true)
		s.metrics.RecordTransition(string(domain.RollStatusUnmapped), string(domain.RollStatusMapped), 1)
		s.logger.Transition(ctx, mapping.RollID, string(domain.RollStatusUnmapped), string(domain.RollStatusMapped), cmd.Actor)
		s.logger.Audit(ctx, "roll.classify", "roll", mapping.RollID, cmd.Actor, map[string]any{
			"skuId":      res.skuID,
			"skuCreated": res.created,
		})
	}

	s.logger.WithContext(ctx).Info("Resolved unmapped rolls", "resolved", result.Resolved, "failed", result.Failed)
	return result, nil
}

func (s *ResolverService) resolveOne(ctx context.Context, mapping RollMapping, actor string) (resolution, error) {
	if appErr := validation.ValidateStruct(mapping); appErr != nil {
		return resolution{}, appErr
	}

	return resilience.RetryWithResult(ctx, s.retry, func() (resolution, error) {
		var res resolution
		err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			roll, err := s.rolls.FindByID(txCtx, mapping.RollID)
			if err != nil {
				return err
			}
			if roll.Status != domain.RollStatusUnmapped {
				return &domain.StateConflictError{
					RollID:    roll.ID,
					Operation: domain.OpClassify,
					Actual:    roll.Status,
					Expected:  domain.AllowedFrom(domain.OpClassify),
				}
			}

			gsm, err := s.catalog.FindGSMByName(txCtx, mapping.GSMName)
			if err != nil {
				return err
			}
			quality, err := s.catalog.FindQualityByName(txCtx, mapping.QualityName)
			if err != nil {
				return err
			}
			product, err := s.catalog.FindProduct(txCtx, mapping.Category, gsm.ID, quality.ID)
			if err != nil {
				return err
			}

			sku, err := s.catalog.FindSKUForProduct(txCtx, product.ID, roll.WidthInches)
			created := false
			if stderrors.Is(err, domain.ErrNotFound) {
				sku, err = domain.NewSKU(product, roll.WidthInches)
				if err != nil {
					return err
				}
				if err := s.catalog.SaveSKU(txCtx, sku); err != nil {
					return err
				}
				created = true
			} else if err != nil {
				return err
			}

			if roll.Descriptors.Category == "" {
				roll.Descriptors.Category = mapping.Category
			}
			if roll.Descriptors.GSM == "" {
				roll.Descriptors.GSM = gsm.Name
			}
			if roll.Descriptors.Quality == "" {
				roll.Descriptors.Quality = quality.Name
			}
			if err := roll.Classify(sku.ID, actor, time.Now()); err != nil {
				return err
			}
			if err := s.rolls.Update(txCtx, roll); err != nil {
				return err
			}
			res = resolution{skuID: sku.ID, created: created}
			return nil
		})
		return res, err
	})
}
