package common

import (
	"errors"
	"strings"
	"testing"
)

func TestValidator(t *testing.T) {
	tests := []struct {
		name     string
		validate func(v *Validator)
		fails    []string
	}{
		{"required blank", func(v *Validator) { v.Field("name", "  ", Required) }, []string{"name"}},
		{"required nil", func(v *Validator) { v.Field("name", nil, Required) }, []string{"name"}},
		{"max len counts runes", func(v *Validator) { v.Field("name", "ééé", MaxLen(3)) }, nil},
		{"max len exceeded", func(v *Validator) { v.Field("name", "abcd", MaxLen(3)) }, []string{"name"}},
		{"one of", func(v *Validator) { v.Field("kind", "smtp", OneOf("openai", "mistral")) }, []string{"kind"}},
		{"one of empty passes", func(v *Validator) { v.Field("kind", "", OneOf("openai")) }, nil},
		{"numbers", func(v *Validator) {
			v.Field("x", -1.0, NonNegative).Field("w", 0.0, Positive).Field("n", 3, Positive)
		}, []string{"x", "w"}},
		{"not empty", func(v *Validator) { v.Field("regions", 0, NotEmpty) }, []string{"regions"}},
		{"fail", func(v *Validator) { v.Fail("regions[1].name", "a", "is duplicated") }, []string{"regions[1].name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			tt.validate(v)
			errs := v.Errors()
			if len(errs) != len(tt.fails) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.fails)
			}
			for i, f := range tt.fails {
				if errs[i].Field != f {
					t.Errorf("errors[%d].Field = %q, want %q", i, errs[i].Field, f)
				}
			}
			err := v.Error()
			if len(tt.fails) == 0 {
				if err != nil {
					t.Errorf("Error() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Error() = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.fails[0]) {
				t.Errorf("Error() = %q, missing field %q", err, tt.fails[0])
			}
		})
	}
}
