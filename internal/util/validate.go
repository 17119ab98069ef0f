package util

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"turnos/internal/apperr"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// report json names so messages match the request body
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Messages maps "field.tag" (json field name and failed rule) to the text
// returned to the caller.
type Messages map[string]string

// ValidateStruct checks s against its validate tags and reports the first
// failure as a validation error.
func ValidateStruct(s any, msgs Messages) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	if m, ok := msgs[fe.Field()+"."+fe.Tag()]; ok {
		return apperr.Invalid(apperr.CodeInvalidInput, "%s", m)
	}
	return apperr.Invalid(apperr.CodeInvalidInput, "Campo '%s' no válido (%s)", fe.Field(), fe.Tag())
}
