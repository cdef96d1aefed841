package server

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]+-\d+$`)

// newValidator returns a validator with the request tags registered:
//
//	notblank  string with non-whitespace content
//	jirakey   issue key such as PROJ-123
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("jirakey", func(fl validator.FieldLevel) bool {
		return issueKeyPattern.MatchString(fl.Field().String())
	})
	return v
}
