package middleware

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

var (
	batchCodeRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,63}$`)
	truckNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{1,31}$`)
)

// InitValidator registers custom rules and JSON field naming on gin's
// validator engine. Safe to call more than once.
func InitValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("batch_code", func(fl validator.FieldLevel) bool {
			return batchCodeRegex.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("truck_number", func(fl validator.FieldLevel) bool {
			return truckNumberRegex.MatchString(fl.Field().String())
		})

		// Use JSON (or form) tag names in error details.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return fld.Name
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
}

// ValidationErrorFields formats validator errors as field -> message.
// Returns nil for errors that are not validation errors.
func ValidationErrorFields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = formatValidationError(e)
	}
	return fields
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte", "min":
		return "must be at least " + e.Param()
	case "lte", "max":
		return "must be at most " + e.Param()
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gtfield":
		return "must be after " + e.Param()
	case "batch_code":
		return "must be 1-64 letters, digits or . _ / -"
	case "truck_number":
		return "must be 2-32 letters, digits, spaces or -"
	default:
		return "failed on " + e.Tag() + " validation"
	}
}
