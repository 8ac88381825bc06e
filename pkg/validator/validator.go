package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/exchange-api/internal/model"
)

// RegisterCustomValidations installs the exchange's domain rules on gin's
// binding engine. Call once at startup.
func RegisterCustomValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterValidation("specialty", validSpecialty)
}

func validSpecialty(fl validator.FieldLevel) bool {
	return model.Specialty(fl.Field().String()).IsValid()
}
