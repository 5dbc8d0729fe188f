package auth

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// ValidationError carries one human-readable message per invalid field,
// keyed by the field's JSON name.
type ValidationError struct {
	Fields map[string]string
}

// Error joins the field messages in field-name order.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Validator checks input records against their validate tags and renders
// failures in English.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewValidator builds a Validator with English messages and the custom
// maxbytes rule.
func NewValidator() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by JSON name so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("maxbytes", validateMaxBytes); err != nil {
		return nil, fmt.Errorf("registering maxbytes rule: %w", err)
	}

	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("registering translations: %w", err)
	}

	overrides := []struct {
		tag, text string
	}{
		{"eqfield", "Passwords are not the same!"},
		{"maxbytes", "{0} must be at most {1} bytes long"},
		{"email", "Please provide a valid email"},
	}
	for _, o := range overrides {
		text := o.text
		err := v.RegisterTranslation(o.tag, trans,
			func(ut ut.Translator) error { return ut.Add(o.tag, text, true) },
			func(ut ut.Translator, fe validator.FieldError) string {
				t, _ := ut.T(fe.Tag(), fe.Field(), fe.Param()) //nolint:errcheck // registered above
				return t
			},
		)
		if err != nil {
			return nil, fmt.Errorf("registering %s translation: %w", o.tag, err)
		}
	}

	return &Validator{validate: v, trans: trans}, nil
}

// Struct validates s. It returns nil or a *ValidationError.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating input: %w", err)
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fe.Translate(v.trans)
	}
	return out
}

// validateMaxBytes bounds the byte length of a string. bcrypt silently
// rejects inputs over 72 bytes, which a rune-counting max would allow.
func validateMaxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}
