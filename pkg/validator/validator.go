package validator

import (
	"github.com/go-playground/validator/v10"

	"github.com/johnquangdev/meeting-calls/internal/domain/entities"
)

// CustomValidator implements echo.Validator using go-playground/validator
type CustomValidator struct {
	v *validator.Validate
}

// New creates a new CustomValidator instance
func New() *CustomValidator {
	v := validator.New()
	// empty roles default later, so only a set role is checked
	_ = v.RegisterValidation("participant_role", func(fl validator.FieldLevel) bool {
		role := entities.ParticipantRole(fl.Field().String())
		return role == "" || role.IsValid()
	})
	return &CustomValidator{v: v}
}

// Validate performs struct validation
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}
