package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/textile-backoffice/roll-inventory/pkg/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the process-wide validator. Field names in errors use json tags.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return lowerFirst(fld.Name)
			}
			return name
		})
	})
	return validate
}

// ValidateStruct validates obj and returns a VALIDATION_ERROR AppError listing each failed field
func ValidateStruct(obj interface{}) *errors.AppError {
	err := Validator().Struct(obj)
	if err == nil {
		return nil
	}
	return FromValidatorError(err)
}

// FromValidatorError converts validator output into an AppError
func FromValidatorError(err error) *errors.AppError {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrBadRequest(fmt.Sprintf("validation error: %v", err))
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		fields[fieldPath(fe)] = Message(fe)
	}
	return errors.ErrValidationWithFields("validation failed", fields)
}

// fieldPath drops the root struct name: "CreateRollsCommand.items[0].length" -> "items[0].length"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Message returns a human-readable message for a validation error
func Message(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s entries or characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
