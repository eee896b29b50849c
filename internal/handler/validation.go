package handler

import (
	"nguvuhire/internal/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the boosttype and posttype binding tags to gin's validator.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("boosttype", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", domain.BoostStandard, domain.BoostPremium, domain.BoostUltra:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("posttype", func(fl validator.FieldLevel) bool {
		return domain.ValidPostType(fl.Field().String())
	})
}
