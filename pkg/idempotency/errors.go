package idempotency

import (
	"errors"
	"net/http"

	apperrors "github.com/textile-backoffice/roll-inventory/pkg/errors"
)

// Error codes returned by the middleware
const (
	CodeKeyRequired        = "IDEMPOTENCY_KEY_REQUIRED"
	CodeKeyInvalid         = "IDEMPOTENCY_KEY_INVALID"
	CodeParameterMismatch  = "IDEMPOTENCY_PARAMETER_MISMATCH"
	CodeConcurrentRequest  = "IDEMPOTENCY_CONCURRENT_REQUEST"
	CodeStorageUnavailable = "IDEMPOTENCY_STORAGE_UNAVAILABLE"
)

var (
	// ErrKeyRequired indicates that an idempotency key is required but was not provided
	ErrKeyRequired = errors.New("idempotency key is required for this operation")

	// ErrKeyInvalid indicates that the idempotency key format is invalid
	ErrKeyInvalid = errors.New("invalid idempotency key format")

	// ErrKeyTooLong indicates that the idempotency key exceeds the maximum length
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length")

	// ErrNotFound indicates that an idempotency key was not found
	ErrNotFound = errors.New("idempotency key not found")
)

func errKeyRequired() *apperrors.AppError {
	return apperrors.NewAppError(CodeKeyRequired, "Idempotency-Key header is required for this operation", http.StatusBadRequest)
}

func errKeyInvalid(err error) *apperrors.AppError {
	return apperrors.NewAppError(CodeKeyInvalid, "invalid idempotency key: "+err.Error(), http.StatusBadRequest)
}

func errParameterMismatch() *apperrors.AppError {
	return apperrors.NewAppError(CodeParameterMismatch,
		"request differs from the original request with this idempotency key", http.StatusUnprocessableEntity)
}

func errConcurrentRequest() *apperrors.AppError {
	return apperrors.NewAppError(CodeConcurrentRequest,
		"a request with this idempotency key is currently being processed", http.StatusConflict)
}

func errStorageUnavailable(err error) *apperrors.AppError {
	return apperrors.NewAppError(CodeStorageUnavailable,
		"idempotency storage is temporarily unavailable", http.StatusServiceUnavailable).Wrap(err)
}
