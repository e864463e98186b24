package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/scalable-order-system/internal/gateway"
)

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
func New() *validator.Validate {
	v := validator.New()

	// "notblank" rejects whitespace-only strings. Used for fields like the
	// PG transaction key that must carry meaningful content.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	// "cardno" accepts card numbers that normalize to a valid Luhn string.
	// Paired with omitempty: an absent card is decided by the order service,
	// which knows whether the order actually charges anything.
	_ = v.RegisterValidation("cardno", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		_, err := gateway.NormalizeCardNo(str)
		return err == nil
	})

	return v
}
