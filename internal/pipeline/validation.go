package pipeline

import (
	"archi_crm_backend/internal/pipeline/domain"
	"archi_crm_backend/platform/validator"

	gpvalidator "github.com/go-playground/validator/v10"
)

// RegisterValidations adds the "stage" tag, accepting any recognized project stage.
func RegisterValidations(val *validator.Validator) error {
	return val.RegisterValidation("stage", func(fl gpvalidator.FieldLevel) bool {
		return domain.Stage(fl.Field().String()).IsKnown()
	})
}
