package core

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// fieldValidate is shared by all fields; validator.Validate is safe for
// concurrent use.
var fieldValidate = validator.New()

// textField is a string column whose cleaned value may be checked further.
type textField struct {
	fieldBase
	check func(cleaned string) (Error, bool)
}

func newTextField(name string, req Requirement, check func(string) (Error, bool), opts []FieldOption) textField {
	return textField{fieldBase: newFieldBase(name, req, SQLText, opts), check: check}
}

func (f *textField) convert(raw string) (ValidationResult[string], any) {
	result := CleanString(raw)
	if f.check != nil {
		if e, ok := f.check(result.Value); !ok {
			result.Errors.Add(e)
			result.Valid = false
		}
	}
	return result, result.Value
}

// ValidateAndConvert implements Field.
func (f *textField) ValidateAndConvert(raw string) (ValidationResult[string], error) {
	result, _ := f.convert(raw)
	result.Errors = attribute(result.Errors, f.name)
	return result, nil
}

// Bind implements Field.
func (f *textField) Bind(stmt Statement, index int, raw string) ErrorSet {
	return f.bindWith(stmt, index, raw, f.convert)
}

// StringField is free text. Illegal sequences are cleaned and reported but
// the value is always stored.
type StringField struct{ textField }

func NewStringField(name string, req Requirement, opts ...FieldOption) *StringField {
	return &StringField{newTextField(name, req, nil, opts)}
}

var colorPattern = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)

// ColorField holds a six digit hexadecimal color without a leading '#'.
type ColorField struct{ textField }

func NewColorField(name string, req Requirement, opts ...FieldOption) *ColorField {
	return &ColorField{newTextField(name, req, func(s string) (Error, bool) {
		return NewError(ColorFormat, s), colorPattern.MatchString(s)
	}, opts)}
}

// LanguageField holds a BCP 47 language tag.
type LanguageField struct{ textField }

func NewLanguageField(name string, req Requirement, opts ...FieldOption) *LanguageField {
	return &LanguageField{newTextField(name, req, func(s string) (Error, bool) {
		_, err := language.Parse(s)
		return NewError(LanguageFormat, s), err == nil
	}, opts)}
}

// URLField holds an absolute URL.
type URLField struct{ textField }

func NewURLField(name string, req Requirement, opts ...FieldOption) *URLField {
	return &URLField{newTextField(name, req, func(s string) (Error, bool) {
		return NewError(URLFormat, s), fieldValidate.Var(s, "url") == nil
	}, opts)}
}

// EmailField holds an email address.
type EmailField struct{ textField }

func NewEmailField(name string, req Requirement, opts ...FieldOption) *EmailField {
	return &EmailField{newTextField(name, req, func(s string) (Error, bool) {
		return NewError(EmailFormat, s), fieldValidate.Var(s, "email") == nil
	}, opts)}
}

// CurrencyField holds an ISO 4217 currency code.
type CurrencyField struct{ textField }

func NewCurrencyField(name string, req Requirement, opts ...FieldOption) *CurrencyField {
	return &CurrencyField{newTextField(name, req, func(s string) (Error, bool) {
		_, err := currency.ParseISO(s)
		return NewError(CurrencyCode, s), err == nil
	}, opts)}
}

// TimezoneField holds an IANA time zone name such as "America/New_York".
type TimezoneField struct{ textField }

func NewTimezoneField(name string, req Requirement, opts ...FieldOption) *TimezoneField {
	return &TimezoneField{newTextField(name, req, func(s string) (Error, bool) {
		// LoadLocation accepts "Local", which is not a zone name.
		if s == "Local" {
			return NewError(TimezoneName, s), false
		}
		_, err := time.LoadLocation(s)
		return NewError(TimezoneName, s), err == nil
	}, opts)}
}
