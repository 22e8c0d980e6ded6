package gateway

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wolfeidau/propertyos/internal/models"
)

// FieldError describes one invalid input field, keyed by its form/JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is returned when input fails validation. Every failing field is listed.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, e := range fe {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "invalid property input: " + strings.Join(parts, "; ")
}

// For returns the message for field, or "" when it is valid.
func (fe FieldErrors) For(field string) string {
	for _, e := range fe {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// NormalizePropertyInput trims every field, maps empty optional fields to nil, defaults and
// uppercases the country, then validates the result. The returned property has no organization;
// the caller assigns it.
func NormalizePropertyInput(in models.PropertyInput) (models.NewProperty, error) {
	country := models.DefaultCountry
	if c := optional(in.Country); c != nil {
		country = *c
	}

	np := models.NewProperty{
		Name:         strings.TrimSpace(in.Name),
		AddressLine1: strings.TrimSpace(in.AddressLine1),
		AddressLine2: optional(in.AddressLine2),
		City:         strings.TrimSpace(in.City),
		State:        optional(in.State),
		PostalCode:   strings.TrimSpace(in.PostalCode),
		Country:      strings.ToUpper(country),
	}

	if err := validate.Struct(np); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return models.NewProperty{}, fmt.Errorf("failed to validate property: %w", err)
		}

		fieldErrs := make(FieldErrors, 0, len(validationErrors))
		for _, e := range validationErrors {
			fieldErrs = append(fieldErrs, FieldError{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
		return models.NewProperty{}, fieldErrs
	}

	return np, nil
}

// optional trims s and returns nil when nothing is left.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	default:
		return "Invalid value"
	}
}
