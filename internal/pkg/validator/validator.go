package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Ad placement validation
	validate.RegisterValidation("placement", func(fl validator.FieldLevel) bool {
		placement := fl.Field().String()
		validPlacements := []string{"home", "search", "category", "profile", "checkout"}
		for _, p := range validPlacements {
			if placement == p {
				return true
			}
		}
		return false
	})

	// ISO 3166-1 alpha-2 country code (uppercase)
	validate.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		country := fl.Field().String()
		if len(country) != 2 {
			return false
		}
		for _, r := range country {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
		return true
	})

	// Priority tier validation
	validate.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
		tier := fl.Field().Int()
		return tier >= 0 && tier <= 10
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "url":
			errors[field] = "Invalid URL format"
		case "placement":
			errors[field] = "Invalid placement. Must be: home, search, category, profile, or checkout"
		case "country":
			errors[field] = "Invalid country code. Must be ISO 3166-1 alpha-2 (e.g. SA, AE)"
		case "tier":
			errors[field] = "Invalid tier. Must be between 0 and 10"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
