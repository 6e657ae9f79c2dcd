// Package validation checks configuration and request structs against their
// `validate` tags and reports failures as INVALID_INPUT AppErrors.
package validation

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/voicememo/errors"
)

// FieldError is one failed rule, keyed by the name the caller used.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var engine = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	return v
})

// fieldName reports a field by its json name, else its mapstructure name.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "mapstructure"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// Validate returns nil or an INVALID_INPUT error whose message lists every
// failing field and whose "fields" detail holds them as []FieldError.
func Validate(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.InvalidInput("", err.Error())
	}

	fields := make([]FieldError, len(verrs))
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		// Namespace starts with the root type name.
		_, path, ok := strings.Cut(fe.Namespace(), ".")
		if !ok {
			path = fe.Namespace()
		}
		fields[i] = FieldError{Field: path, Message: describe(fe)}
		parts[i] = path + ": " + fields[i].Message
	}
	appErr := errors.InvalidInput("", strings.Join(parts, "; "))
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}

var ruleText = map[string]string{
	"required":    "is required",
	"required_if": "is required when ",
	"min":         "must be at least ",
	"max":         "must be at most ",
	"gte":         "must be >= ",
	"oneof":       "must be one of: ",
	"url":         "must be a valid URL",
}

func describe(fe validator.FieldError) string {
	text, ok := ruleText[fe.Tag()]
	switch {
	case !ok:
		return "is invalid"
	case strings.HasSuffix(text, " "):
		return text + fe.Param()
	}
	return text
}
