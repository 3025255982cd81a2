// Package validation checks command parameters against their struct tags.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cleared-dev/bursar/internal/ledgererr"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report yaml/field names the way they appear on disk.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v and converts failures into a ledger validation error.
func Struct(entity string, v any) error {
	err := engine().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ledgererr.Wrap(err, ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, "", "validation failed")
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fe.Field() + ": " + message(fe)
	}
	return ledgererr.New(ledgererr.KindValidation, ledgererr.ErrInvalidInput.Code, entity, "", strings.Join(msgs, "; "))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "numeric":
		return "must be numeric"
	default:
		return "is invalid"
	}
}
