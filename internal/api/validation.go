package api

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	// report json field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (rv *requestValidator) Validate(i any) error {
	return rv.validate.Struct(i)
}

// fieldErrors maps each rejected field to a readable reason.
func fieldErrors(err error) map[string]string {
	out := make(map[string]string)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, e := range verrs {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = field + " is required"
		case "uuid":
			out[field] = field + " must be a valid UUID"
		case "oneof":
			out[field] = field + " must be one of: " + e.Param()
		case "min":
			out[field] = field + " must be at least " + e.Param()
		case "max":
			out[field] = field + " must be at most " + e.Param()
		default:
			out[field] = field + " is invalid"
		}
	}
	return out
}

func summarize(fields map[string]string) string {
	msgs := make([]string, 0, len(fields))
	for _, m := range fields {
		msgs = append(msgs, m)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
