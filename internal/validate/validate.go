// Package validate wraps go-playground/validator with English messages that
// use configuration and query field names.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/robfig/cron/v3"
)

// FieldError is one failed constraint.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

var (
	once  sync.Once
	v     *validator.Validate
	trans ut.Translator
)

func get() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ = uni.GetTranslator("en")

		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(fieldName)
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
			_, err := cron.ParseStandard(fl.Field().String())
			return err == nil
		})
		register(v, "cron", "{0} must be a 5-field cron spec or descriptor")
		register(v, "hostname_port", "{0} must be host:port")
		register(v, "timezone", "{0} must be an IANA time zone name")
		register(v, "min", "{0} must be at least {1}")
		register(v, "max", "{0} must be at most {1}")
	})
	return v, trans
}

// fieldName prefers the yaml, query and json tag names, in that order.
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"yaml", "query", "json"} {
		tag := fld.Tag.Get(key)
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		if tag != "" && tag != "-" {
			return tag
		}
	}
	return fld.Name
}

func register(v *validator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Namespace(), fe.Param())
			return msg
		},
	)
}

// Struct validates s and joins one *FieldError per failed constraint.
func Struct(s any) error {
	v, trans := get()
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &FieldError{Field: trimRoot(fe.Namespace()), Message: trimRoot(fe.Translate(trans))})
	}
	return errors.Join(errs...)
}

// trimRoot drops the leading struct type name from a namespace.
func trimRoot(s string) string {
	if i := strings.Index(s, "."); i >= 0 && !strings.ContainsAny(s[:i], " ") {
		return s[i+1:]
	}
	return s
}
