// Package validator wraps go-playground/validator with the custom checks
// used by the API handlers. Binding or validation failure maps to a 422
// response with a {detail} body.
package validator

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/benchvault/benchvault/internal/apperrors"
)

// validate is the singleton validator instance
var validate *validator.Validate

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("username", validateUsername)
}

// ValidateStruct validates a struct against its validate tags.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// BindAndValidate binds JSON and validates in one step. Returns true on
// success; on failure the 422 response is already written.
func BindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity,
			apperrors.Validation("invalid request body: "+err.Error()).Response())
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusUnprocessableEntity,
			apperrors.Validation(formatErrors(err)).Response())
		return false
	}
	return true
}

// validateUsername restricts usernames to a filesystem- and group-safe
// charset: the name doubles as the personal group name.
func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

func formatErrors(err error) string {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		parts = append(parts, formatFieldError(e))
	}
	return strings.Join(parts, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "username":
		return "username may only contain letters, digits, dashes and underscores"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
