package models

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate

	platePattern = regexp.MustCompile(`^(?:[A-Z]{3}\d{4}|[A-Z]{3}\d[A-Z]\d{2})$`)
)

func init() {
	validate = validator.New()
	RegisterCustomValidations()
}

// ValidateStruct validates a record using its validate tags
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// NormalizePlate upper-cases a plate and drops separators ("abc-1234" -> "ABC1234").
func NormalizePlate(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidPlate accepts the old Brazilian layout (ABC1234) and Mercosul (ABC1D23).
func IsValidPlate(s string) bool {
	return platePattern.MatchString(NormalizePlate(s))
}

// IsValidDataHora reports whether s parses as a DATA_HORA value.
func IsValidDataHora(s string) bool {
	_, ok := ParseDataHora(s)
	return ok
}

// RegisterCustomValidations registers the store-specific validation tags
func RegisterCustomValidations() {
	validate.RegisterValidation("placa", func(fl validator.FieldLevel) bool {
		return IsValidPlate(fl.Field().String())
	})

	validate.RegisterValidation("datahora", func(fl validator.FieldLevel) bool {
		return IsValidDataHora(fl.Field().String())
	})
}
