package application

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/textile-backoffice/roll-inventory/internal/domain"
	"github.com/textile-backoffice/roll-inventory/pkg/errors"
)

// toAppError translates domain and persistence errors into the API error
// envelope. Details carry the roll, statuses and counts the caller needs.
func toAppError(err error) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var (
		notFound     *domain.NotFoundError
		conflict     *domain.StateConflictError
		insufficient *domain.InsufficientStockError
		invalid      *domain.ValidationError
	)
	switch {
	case stderrors.As(err, &notFound):
		return errors.ErrNotFoundWithID(notFound.Resource, notFound.ID).
			WithDetail("resource", notFound.Resource).
			Wrap(err)
	case stderrors.As(err, &conflict):
		expected := make([]string, len(conflict.Expected))
		for i, s := range conflict.Expected {
			expected[i] = string(s)
		}
		return errors.ErrStateConflict(conflict.Error()).
			WithDetail("rollId", conflict.RollID).
			WithDetail("operation", string(conflict.Operation)).
			WithDetail("actual", string(conflict.Actual)).
			WithDetail("expected", strings.Join(expected, ",")).
			Wrap(err)
	case stderrors.As(err, &insufficient):
		return errors.ErrInsufficientStock(insufficient.Error()).
			WithDetail("skuId", insufficient.SKUID).
			WithDetail("required", strconv.Itoa(insufficient.Required)).
			WithDetail("available", strconv.Itoa(insufficient.Available)).
			Wrap(err)
	case stderrors.As(err, &invalid):
		return errors.ErrValidationWithFields(invalid.Error(), map[string]string{invalid.Field: invalid.Reason}).
			Wrap(err)
	case stderrors.Is(err, domain.ErrStateConflict), stderrors.Is(err, domain.ErrConcurrentModification):
		return errors.ErrStateConflict(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrValidation):
		return errors.ErrValidation(err.Error()).Wrap(err)
	case stderrors.Is(err, domain.ErrNotFound):
		return errors.ErrNotFound("resource").Wrap(err)
	case stderrors.Is(err, domain.ErrTransient),
		stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		return errors.ErrTransient("").Wrap(err)
	default:
		return errors.MapDomainError(err)
	}
}
