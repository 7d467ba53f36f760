// Package validation provides request validation utilities using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/listenupapp/circulation/internal/domain"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
)

// Messages maps "field.tag" keys (json field names) to the exact message
// reported when that rule fails.
type Messages map[string]string

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		for i := range len(name) {
			if name[i] == ',' {
				return name[:i]
			}
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return domain.IsDigits(fl.Field().String())
	})
	_ = v.RegisterValidation("patronid", func(fl validator.FieldLevel) bool {
		return domain.ValidPatronID(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	return v.ValidateWithMessages(s, nil)
}

// ValidateWithMessages validates a struct. The returned error's message is the
// first failing rule's entry in msgs, falling back to a generic description.
// Fields are checked in declaration order.
func (v *Validator) ValidateWithMessages(s any, msgs Messages) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	first := ""
	for _, e := range validationErrs {
		msg, ok := msgs[e.Field()+"."+e.Tag()]
		if !ok {
			msg = e.Field() + " " + friendlyMessage(e)
		}
		fieldErrors[e.Field()] = msg
		if first == "" {
			first = msg
		}
	}

	return domainerrors.ValidationWithDetails(first, fieldErrors)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "digits":
		return "must contain only digits"
	case "patronid":
		return fmt.Sprintf("must be exactly %d digits", domain.PatronIDLength)
	case "oneof":
		return "must be one of: " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}
