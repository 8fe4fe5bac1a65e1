package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/manolocortes/evTrak/internal/types"
)

// Validator wraps go-playground/validator for request body validation.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates a request payload against its struct tags. On
// failure it returns a validation_failed AppError whose details map field
// names to the violated rule.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "invalid validation target", err)
	}

	details := make(map[string]any)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationFailed,
		"request validation failed", err, details)
}
