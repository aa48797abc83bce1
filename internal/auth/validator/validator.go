package validator

import (
	"unicode"

	"archi_crm_backend/platform/httpkit"
	platformvalidator "archi_crm_backend/platform/validator"

	"github.com/go-playground/validator/v10"
)

// PasswordPolicy describes the password requirements for API error messages
const PasswordPolicy = "Le mot de passe doit contenir au moins 8 caractères, dont une majuscule, une minuscule, un chiffre et un caractère spécial"

// Register adds the auth rules ("strongpassword", "role") to val.
func Register(val *platformvalidator.Validator) error {
	if err := val.RegisterValidation("strongpassword", validateStrongPassword); err != nil {
		return err
	}
	return val.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case httpkit.RoleAdmin, httpkit.RoleManager, httpkit.RoleArchitect, httpkit.RoleCommercial:
			return true
		}
		return false
	})
}

// validateStrongPassword checks for password complexity:
// - At least 8 characters
// - At least one uppercase letter
// - At least one lowercase letter
// - At least one digit
// - At least one special character
func validateStrongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()

	if len(password) < 8 {
		return false
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasDigit   bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	return hasUpper && hasLower && hasDigit && hasSpecial
}
