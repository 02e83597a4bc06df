package serverutils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/store"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// json names in error output
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("translation_kr", translationOf(bible.Korean))
	_ = v.RegisterValidation("translation_en", translationOf(bible.English))
	_ = v.RegisterValidation("denomination", func(fl validator.FieldLevel) bool {
		d := fl.Field().String()
		return d == "" || store.IsDenomination(d)
	})
	return v
}

func translationOf(lang bible.Language) validator.Func {
	return func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" {
			return true
		}
		t, ok := bible.LookupTranslation(name)
		return ok && t.Language == lang
	}
}

// FieldError describes one rejected request field
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Value string `json:"value,omitempty"`
}

// ValidationError is returned by ValidateRequest and rendered as 400
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s failed on %s", f.Field, f.Rule)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateRequest runs the struct tags of req
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Value: fmt.Sprint(fe.Value()),
		})
	}
	return out
}
