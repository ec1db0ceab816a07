package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// domainRules are the custom tags request payloads may use.
var domainRules = map[string]validator.Func{
	// mailbox is stricter than the builtin email tag.
	"mailbox": func(fl validator.FieldLevel) bool {
		return ValidateEmail(fl.Field().String()) == nil
	},
	"membership_role": func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(strings.TrimSpace(fl.Field().String())) {
		case "ADMIN", "EDITOR", "VIEWER":
			return true
		default:
			return false
		}
	},
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// Message renders the failure for API clients.
func (e ValidationError) Message() string {
	field := strings.ToLower(strings.ReplaceAll(e.Field, "_", " "))
	if field == "" {
		field = "field"
	}

	switch e.Tag {
	case "required":
		return field + " is required"
	case "email", "mailbox":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "membership_role":
		return field + " must be one of ADMIN, EDITOR or VIEWER"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param)
	}
	if e.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, e.Tag)
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		parts[i] = err.Message()
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using the builtin and domain rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}

	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, ValidationError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

// ValidateEmail checks an address with the same rule as the "mailbox" tag.
func ValidateEmail(email string) error {
	return checkmail.ValidateFormat(strings.TrimSpace(email))
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		for tag, rule := range domainRules {
			if err := validate.RegisterValidation(tag, rule); err != nil {
				panic(fmt.Sprintf("validator: register %s: %v", tag, err))
			}
		}
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
