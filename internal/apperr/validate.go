package apperr

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs struct tag validation and reports the first failing
// field as a validation error.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return Validation(field, "required", field+" is required")
	case "oneof":
		return Validation(field, "invalid_value", field+" must be one of: "+fe.Param())
	case "max":
		return Validation(field, "too_long", field+" must be at most "+fe.Param()+" characters")
	case "min", "gte", "gt":
		return Validation(field, "out_of_range", field+" is below the allowed minimum")
	case "lte", "lt":
		return Validation(field, "out_of_range", field+" is above the allowed maximum")
	default:
		return Validation(field, "invalid_value", field+" is invalid")
	}
}
