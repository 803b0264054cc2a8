package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/textile-backoffice/roll-inventory/pkg/errors"
	"github.com/textile-backoffice/roll-inventory/pkg/validation"
)

// BindAndValidate binds the JSON body and validates it with the shared validator
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		if _, ok := err.(validator.ValidationErrors); ok {
			return validation.FromValidatorError(err)
		}
		return errors.ErrBadRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return validation.ValidateStruct(obj)
}

// Actor returns the acting user for audit attribution. Authentication happens
// upstream; the gateway forwards the principal in X-Actor.
func Actor(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return "system"
}

// BindJSON binds the body without validating. Used when path parameters
// complete the command before the service validates it.
func BindJSON(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return errors.ErrBadRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// BindQuery binds and validates query parameters
func BindQuery(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return errors.ErrBadRequest(fmt.Sprintf("invalid query: %v", err))
	}
	return validation.ValidateStruct(obj)
}
