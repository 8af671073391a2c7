package common

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError is one rejected field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// Rule returns a failure message for value, or "" when it passes.
type Rule func(value any) string

// Validator accumulates field failures so a caller sees all of them at once.
type Validator struct {
	errs []ValidationError
}

func NewValidator() *Validator { return &Validator{} }

// Field applies rules to value in order and records every failure.
func (v *Validator) Field(name string, value any, rules ...Rule) *Validator {
	for _, rule := range rules {
		if msg := rule(value); msg != "" {
			v.errs = append(v.errs, ValidationError{Field: name, Value: value, Message: msg})
		}
	}
	return v
}

// Fail records a failure found outside a Rule, e.g. a cross-field check.
func (v *Validator) Fail(name string, value any, msg string) *Validator {
	v.errs = append(v.errs, ValidationError{Field: name, Value: value, Message: msg})
	return v
}

func (v *Validator) Errors() []ValidationError { return v.errs }

// Error joins all failures into one error matching ErrValidation, or nil.
func (v *Validator) Error() error {
	if len(v.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Required rejects nil and blank strings.
func Required(value any) string {
	switch s := value.(type) {
	case nil:
		return "is required"
	case string:
		if strings.TrimSpace(s) == "" {
			return "is required"
		}
	}
	return ""
}

// MaxLen limits strings to n runes.
func MaxLen(n int) Rule {
	return func(value any) string {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > n {
			return fmt.Sprintf("must be at most %d characters", n)
		}
		return ""
	}
}

// OneOf restricts strings to allowed; the empty string always passes.
func OneOf(allowed ...string) Rule {
	return func(value any) string {
		s, _ := value.(string)
		if s == "" {
			return ""
		}
		for _, a := range allowed {
			if s == a {
				return ""
			}
		}
		return "must be one of " + strings.Join(allowed, ", ")
	}
}

func NonNegative(value any) string {
	if n, ok := number(value); ok && n < 0 {
		return "must not be negative"
	}
	return ""
}

func Positive(value any) string {
	if n, ok := number(value); ok && n <= 0 {
		return "must be positive"
	}
	return ""
}

// NotEmpty rejects a zero length, passed as an int.
func NotEmpty(value any) string {
	if n, ok := value.(int); ok && n == 0 {
		return "must not be empty"
	}
	return ""
}

func number(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
