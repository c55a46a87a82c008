package accounts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

type registration struct {
	Username string `validate:"required,min=3,max=150,username"`
	Password string `validate:"required,min=8,max=72"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Errorf("failed to register username validation: %w", err))
	}

	return v
}

// InvalidRegistrationError lists the fields that failed validation.
type InvalidRegistrationError struct {
	Fields map[string]string
}

func (err InvalidRegistrationError) Error() string {
	parts := make([]string, 0, len(err.Fields))
	for _, field := range []string{"username", "password"} {
		if rule, ok := err.Fields[field]; ok {
			parts = append(parts, field+" "+rule)
		}
	}

	return "invalid registration: " + strings.Join(parts, ", ")
}

func validateRegistration(username, password string) error {
	err := validate.Struct(registration{Username: username, Password: password})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate registration: %w", err)
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[strings.ToLower(fe.Field())] = describeRule(fe)
	}

	return &InvalidRegistrationError{Fields: fields}
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "username":
		return "may only contain letters, digits and @/./+/-/_"
	default:
		return "is invalid"
	}
}
