// Package form validates submitted form fields through explicit bindings.
//
// Each field is a FieldBinding: it knows its name, how to validate a value
// against the rest of the submission, and whether it validates on blur.
// A Form composes bindings and turns rule failures into a
// domain.ValidationError keyed by field name.
package form

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Values holds one submitted value per field name.
type Values map[string]string

// FromURLValues takes the first value of each key.
func FromURLValues(v url.Values) Values {
	out := make(Values, len(v))
	for k := range v {
		out[k] = v.Get(k)
	}
	return out
}

// FieldError is the error a binding reports for an invalid value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// FieldBinding is the contract between a rendered field and form state.
type FieldBinding interface {
	// Name is the submitted field name.
	Name() string

	// Validate checks value with access to the other submitted values.
	// It returns a *FieldError on failure.
	Validate(value string, values Values) error

	// OnBlur runs when the field loses focus. Fields that do not validate on
	// blur return nil.
	OnBlur(value string, values Values) error
}

// Rule checks one constraint. It returns the failure message, or "" when the
// value passes.
type Rule func(value string, values Values) string

// Field is a FieldBinding built from an ordered list of rules. The first
// failing rule wins.
type Field struct {
	name   string
	rules  []Rule
	onBlur bool
}

// NewField creates a field bound to name.
func NewField(name string, rules ...Rule) *Field {
	return &Field{name: name, rules: rules}
}

// ValidateOnBlur makes OnBlur run the field's rules.
func (f *Field) ValidateOnBlur() *Field {
	f.onBlur = true
	return f
}

func (f *Field) Name() string {
	return f.name
}

func (f *Field) Validate(value string, values Values) error {
	for _, rule := range f.rules {
		if msg := rule(value, values); msg != "" {
			return &FieldError{Field: f.name, Message: msg}
		}
	}
	return nil
}

func (f *Field) OnBlur(value string, values Values) error {
	if !f.onBlur {
		return nil
	}
	return f.Validate(value, values)
}

// Required fails on empty or whitespace-only values.
func Required(msg string) Rule {
	return func(value string, _ Values) string {
		if strings.TrimSpace(value) == "" {
			return msg
		}
		return ""
	}
}

// MinLength fails when value has fewer than n characters.
// Empty values pass; combine with Required.
func MinLength(n int, msg string) Rule {
	return func(value string, _ Values) string {
		if value != "" && utf8.RuneCountInString(value) < n {
			return msg
		}
		return ""
	}
}

// MaxLength fails when value has more than n characters.
func MaxLength(n int, msg string) Rule {
	return func(value string, _ Values) string {
		if utf8.RuneCountInString(value) > n {
			return msg
		}
		return ""
	}
}

// MaxBytes fails when value is longer than n bytes.
func MaxBytes(n int, msg string) Rule {
	return func(value string, _ Values) string {
		if len(value) > n {
			return msg
		}
		return ""
	}
}

// Pattern fails when a non-empty value does not match re.
func Pattern(re *regexp.Regexp, msg string) Rule {
	return func(value string, _ Values) string {
		if value != "" && !re.MatchString(value) {
			return msg
		}
		return ""
	}
}

// Email fails when a non-empty value is not a plausible email address.
func Email(msg string) Rule {
	return func(value string, _ Values) string {
		if value != "" && !IsEmail(strings.TrimSpace(value)) {
			return msg
		}
		return ""
	}
}

// MatchField fails when value differs from the submitted value of other.
func MatchField(other, msg string) Rule {
	return func(value string, values Values) string {
		if value != values[other] {
			return msg
		}
		return ""
	}
}

// IsEmail reports whether s has exactly one @ with a non-empty local part and
// a dotted domain, no consecutive dots, and fits in 254 bytes.
func IsEmail(s string) bool {
	if s == "" || len(s) > 254 {
		return false
	}
	if strings.Count(s, "@") != 1 || strings.Contains(s, "..") {
		return false
	}
	at := strings.IndexByte(s, '@')
	if at == 0 || at == len(s)-1 {
		return false
	}
	return strings.Contains(s[at+1:], ".")
}
