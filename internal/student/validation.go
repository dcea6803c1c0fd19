package student

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that understands the "schoolclass" tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("schoolclass", func(fl validator.FieldLevel) bool {
		return IsValidClass(fl.Field().String())
	})
	return v
}

// validationMessage turns validator errors into a short client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "schoolclass":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.Join(Classes, ", ")))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
