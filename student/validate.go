package student

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Rules on Optional fields apply to the wrapped value; absent and null
	// values are skipped by omitempty.
	v.RegisterCustomTypeFunc(optionalValue[int], Optional[int]{})
	v.RegisterCustomTypeFunc(optionalValue[string], Optional[string]{})

	return v
}

func optionalValue[T any](field reflect.Value) interface{} {
	o, ok := field.Interface().(Optional[T])
	if !ok || o.Value == nil {
		return nil
	}
	return *o.Value
}

// Validate checks a patch against the student schema. Failures wrap ErrValidation.
func (p Patch) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
}
