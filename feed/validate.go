package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("notblank", validators.NotBlank)
}

type postContent struct {
	Content string `validate:"notblank,max=5000"`
}

type commentContent struct {
	Content string `validate:"notblank,max=2000"`
}

// ValidatePostContent rejects blank posts and posts longer than MaxPostLength code points.
func ValidatePostContent(content string) error {
	return validateContent("post", postContent{Content: content})
}

// ValidateCommentContent rejects blank comments and comments longer than MaxCommentLength code points.
func ValidateCommentContent(content string) error {
	return validateContent("comment", commentContent{Content: content})
}

func validateContent(field string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return fmt.Errorf("failed to validate %s: %w", field, err)
	}

	fieldErr := validationErrs[0]

	return &ValidationError{
		Field: field,
		Rule:  fieldErr.Tag(),
		Limit: fieldErr.Param(),
	}
}

// IsBlank reports whether content has nothing but whitespace.
func IsBlank(content string) bool {
	return strings.TrimSpace(content) == ""
}
