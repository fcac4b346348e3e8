package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrors is a list of human-readable configuration problems.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "invalid lifecycle settings: " + strings.Join(v, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their yaml names, the same names the policy file and CLI use.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks ranges, frequency names and that the default frequencies are a
// subset of the supported ones. Escalation ordering is checked by the reminder policy.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return ValidationErrors{err.Error()}
		}
		for _, fe := range fieldErrs {
			errs = append(errs, describe(fe))
		}
	}

	for _, f := range c.DefaultFrequencies {
		if !c.Supports(f) {
			errs = append(errs, fmt.Sprintf("default frequency %q is not a supported frequency", f))
		}
	}
	return errs
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
