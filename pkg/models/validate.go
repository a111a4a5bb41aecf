package models

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// recordIDPattern is the normalized identifier rule for templates, workflows
// and drafts: alphanumeric, dash or underscore, 3-100 characters.
var recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,100}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("recordid", func(fl validator.FieldLevel) bool {
		return recordIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks a manifest against its declared shape rules. It is run at
// every service boundary before anything is written.
func Validate(v any) error {
	return validate.Struct(v)
}

// ValidID reports whether s satisfies the normalized identifier rule.
func ValidID(s string) bool {
	return recordIDPattern.MatchString(s)
}
